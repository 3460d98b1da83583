package repository

import (
	"context"
	"errors"
	"time"

	"familytrack/internal/core/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresFamilyRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresFamilyRepository(pool *pgxpool.Pool) *PostgresFamilyRepository {
	return &PostgresFamilyRepository{pool: pool}
}

func (r *PostgresFamilyRepository) FindByUserID(ctx context.Context, userID string) (*model.FamilyMember, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT user_id, family_id, name, role FROM family_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	member, err := pgx.CollectExactlyOneRow(rows, scanFamilyMember)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return member, err
}

func (r *PostgresFamilyRepository) FindByFamilyID(ctx context.Context, familyID string) ([]*model.FamilyMember, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT user_id, family_id, name, role FROM family_members WHERE family_id = $1 ORDER BY user_id`, familyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanFamilyMember)
}

func scanFamilyMember(row pgx.CollectableRow) (*model.FamilyMember, error) {
	var m model.FamilyMember
	if err := row.Scan(&m.UserID, &m.FamilyID, &m.Name, &m.Role); err != nil {
		return nil, err
	}
	return &m, nil
}
