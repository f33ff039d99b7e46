package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

var ErrUniqueViolation = errors.New("unique constraint violation")

// ConstraintError carries the database detail for a rejected write, e.g.
// `Key (email)=(a@b.com) already exists.`
type ConstraintError struct {
	Constraint string
	Detail     string
}

func (e *ConstraintError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return ErrUniqueViolation
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return &ConstraintError{Constraint: pgErr.ConstraintName, Detail: pgErr.Detail}
	}
	return err
}
