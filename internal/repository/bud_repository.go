package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
)

const budColumns = `id, strain_name_th, strain_name_en, breeder, category, thc, cbd,
	image1, image2, image3, image4, cert1, cert2, status, test_lab, tested_at,
	created_by, created_at, updated_at`

// BudRepo encapsulates all queries against the buds table.
type BudRepo struct{ db *database.DB }

func NewBudRepo(db *database.DB) *BudRepo { return &BudRepo{db: db} }

func scanBud(row interface{ Scan(...any) error }) (model.Bud, error) {
	var b model.Bud
	err := row.Scan(&b.ID, &b.StrainNameTH, &b.StrainNameEN, &b.Breeder, &b.Category,
		&b.THC, &b.CBD,
		&b.Images[0], &b.Images[1], &b.Images[2], &b.Images[3],
		&b.Certs[0], &b.Certs[1],
		&b.Status, &b.TestLab, &b.TestedAt,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Create inserts a bud owned by b.CreatedBy and populates b.ID.
func (r *BudRepo) Create(ctx context.Context, b *model.Bud) error {
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO buds (strain_name_th, strain_name_en, breeder, category, thc, cbd,
			status, test_lab, tested_at, created_by)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		b.StrainNameTH, b.StrainNameEN, b.Breeder, b.Category, b.THC, b.CBD,
		b.Status, b.TestLab, b.TestedAt, b.CreatedBy)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// GetByID fetches one bud.
func (r *BudRepo) GetByID(ctx context.Context, id int64) (model.Bud, error) {
	b, err := scanBud(r.db.QueryRowContext(ctx,
		"SELECT "+budColumns+" FROM buds WHERE id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBudNotFound
	}
	return b, err
}

// ListByOwner returns every bud created by one user.
func (r *BudRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Bud, error) {
	return r.list(ctx, "SELECT "+budColumns+" FROM buds WHERE created_by = ? ORDER BY id DESC", ownerID)
}

// ListAvailable returns a page of buds in the available state, newest
// first.
func (r *BudRepo) ListAvailable(ctx context.Context, page, pageSize int) ([]model.Bud, error) {
	if page < 1 {
		page = 1
	}
	return r.list(ctx,
		"SELECT "+budColumns+" FROM buds WHERE status = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		model.BudAvailable, pageSize, (page-1)*pageSize)
}

func (r *BudRepo) list(ctx context.Context, q string, args ...any) ([]model.Bud, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Bud
	for rows.Next() {
		b, err := scanBud(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Update rewrites the editable fields if the bud belongs to ownerID.
// ErrForbidden is returned when the bud exists under another owner.
func (r *BudRepo) Update(ctx context.Context, b *model.Bud, ownerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE buds SET strain_name_th = ?, strain_name_en = ?, breeder = ?, category = ?,
			thc = ?, cbd = ?, status = ?, test_lab = ?, tested_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND created_by = ?`,
		b.StrainNameTH, b.StrainNameEN, b.Breeder, b.Category, b.THC, b.CBD,
		b.Status, b.TestLab, b.TestedAt, b.ID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.notFoundOrForbidden(ctx, b.ID)
	}
	return nil
}

// SetImage stores the path of an uploaded image or certificate in a fixed
// slot.  slot is "image1".."image4", "cert1" or "cert2"; only the owner may
// write.
func (r *BudRepo) SetImage(ctx context.Context, budID, ownerID int64, slot, path string) error {
	switch slot {
	case "image1", "image2", "image3", "image4", "cert1", "cert2":
	default:
		return fmt.Errorf("unknown image slot %q", slot)
	}
	q := fmt.Sprintf(
		"UPDATE buds SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND created_by = ?", slot)
	res, err := r.db.ExecContext(ctx, q, path, budID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.notFoundOrForbidden(ctx, budID)
	}
	return nil
}

// Delete removes an owned bud; reviews and activity entries cascade.
func (r *BudRepo) Delete(ctx context.Context, budID, ownerID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM buds WHERE id = ? AND created_by = ?", budID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.notFoundOrForbidden(ctx, budID)
	}
	return nil
}

func (r *BudRepo) notFoundOrForbidden(ctx context.Context, budID int64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM buds WHERE id = ?", budID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrBudNotFound
	}
	return ErrForbidden
}

// BudSearchQuery defines filters and pagination for catalog search.
type BudSearchQuery struct {
	Name     string
	Breeder  string
	Category string
	Page     int
	PageSize int
}

// Search filters available buds by name (Thai or English), breeder and
// category, returning the page plus the total match count.
func (r *BudRepo) Search(ctx context.Context, q BudSearchQuery) ([]model.Bud, int64, error) {
	where := []string{"status = ?"}
	args := []any{model.BudAvailable}

	if q.Name != "" {
		where = append(where, "(LOWER(strain_name_en) LIKE ? OR strain_name_th LIKE ?)")
		args = append(args, "%"+strings.ToLower(q.Name)+"%", "%"+q.Name+"%")
	}
	if q.Breeder != "" {
		where = append(where, "LOWER(breeder) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Breeder)+"%")
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToLower(q.Category))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM buds WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)
	items, err := r.list(ctx,
		"SELECT "+budColumns+" FROM buds WHERE "+cond+" ORDER BY id DESC LIMIT ? OFFSET ?",
		argsData...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// StrainNames returns the seeded autocomplete list filtered by prefix.
func (r *BudRepo) StrainNames(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM strain_names WHERE LOWER(name) LIKE ? ORDER BY name LIMIT 20",
		strings.ToLower(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Breeders returns the seeded breeder list.
func (r *BudRepo) Breeders(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM breeders ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
