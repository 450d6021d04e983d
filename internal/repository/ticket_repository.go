package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-archiver/internal/domain"
)

// ErrNotOpen is returned when a close is attempted on a ticket that is not
// in the open state. Closed is terminal.
var ErrNotOpen = errors.New("ticket is not open")

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Close(ctx context.Context, id int64, closedAt time.Time) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (requester_user_id, content, tag, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if ticket.Tag == "" {
		ticket.Tag = domain.TicketTagOther
	}
	return r.pool.QueryRow(ctx, query,
		ticket.RequesterID,
		ticket.Content,
		ticket.Tag,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `
        SELECT id, requester_user_id, content, tag, status, created_at, closed_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.Content,
		&ticket.Tag,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Close transitions an open ticket to closed, setting closed_at. The guard
// on status keeps the transition one-way even under concurrent closes.
func (r *ticketRepository) Close(ctx context.Context, id int64, closedAt time.Time) error {
	const query = `
        UPDATE tickets SET status=$1, closed_at=$2
        WHERE id=$3 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query,
		domain.TicketStatusClosed,
		closedAt,
		id,
		domain.TicketStatusOpen,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return pgx.ErrNoRows
		}
		return ErrNotOpen
	}
	return nil
}
