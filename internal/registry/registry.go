// Package registry is the read-only view of the employee directory that the
// payslip pipeline matches against. The pipeline never writes employees.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nominahq/payslip-service/internal/db"
	"github.com/nominahq/payslip-service/internal/models"
)

// Registry is what the matcher and the manual-assignment flow consume.
type Registry interface {
	FindByDNI(ctx context.Context, dni string) (*models.Employee, error)
	FindByNameFuzzy(ctx context.Context, name string) ([]NameMatch, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]models.Employee, error)
}

// NameMatch pairs a candidate with its similarity to the queried name,
// in [0,1].
type NameMatch struct {
	Employee   models.Employee `json:"employee"`
	Similarity float64         `json:"similarity"`
}

// minNameSimilarity is the floor below which a fuzzy candidate is noise.
const minNameSimilarity = 0.6

const employeeColumns = `id, dni, full_name, email, active, deactivated_at`

type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) FindByDNI(ctx context.Context, dni string) (*models.Employee, error) {
	dni = NormalizeDNI(dni)
	if dni == "" {
		return nil, nil
	}

	var e models.Employee
	err := s.pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE dni = $1`,
		dni,
	).Scan(&e.ID, &e.DNI, &e.FullName, &e.Email, &e.Active, &e.DeactivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find employee by dni: %w", err)
	}
	return &e, nil
}

// FindByNameFuzzy returns candidates ordered by similarity, best first.
// Candidate rows are prefiltered in SQL by shared name tokens, then scored
// with normalized Levenshtein similarity in Go.
func (s *Store) FindByNameFuzzy(ctx context.Context, name string) ([]NameMatch, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE to_tsvector('simple', full_name) @@ plainto_tsquery('simple', $1)
		 LIMIT 50`,
		normalized,
	)
	if err != nil {
		return nil, fmt.Errorf("fuzzy name query: %w", err)
	}
	defer rows.Close()

	var matches []NameMatch
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.DNI, &e.FullName, &e.Email, &e.Active, &e.DeactivatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		sim := NameSimilarity(normalized, e.FullName)
		if sim >= minNameSimilarity {
			matches = append(matches, NameMatch{Employee: e, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fuzzy name rows: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var e models.Employee
	err := s.pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.DNI, &e.FullName, &e.Email, &e.Active, &e.DeactivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &e, nil
}

func (s *Store) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return e.Active, nil
}

func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.Employee, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE full_name ILIKE '%' || $1 || '%' OR dni ILIKE $1 || '%'
		 ORDER BY full_name LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search employees: %w", err)
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.DNI, &e.FullName, &e.Email, &e.Active, &e.DeactivatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NameSimilarity scores two names in [0,1] using Levenshtein similarity over
// their normalized forms. Token order is absorbed by also comparing the
// sorted-token form and taking the better score.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	direct := levenshtein.Similarity(na, nb, nil)
	sorted := levenshtein.Similarity(sortTokens(na), sortTokens(nb), nil)
	if sorted > direct {
		return sorted
	}
	return direct
}

func sortTokens(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}
