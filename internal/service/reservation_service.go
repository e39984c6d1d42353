package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReserveCommand asks for a time-boxed hold on stock.
type ReserveCommand struct {
	ProductID   uuid.UUID
	BatchID     *uuid.UUID
	Quantity    int
	Type        model.ReservationType
	ReferenceID string
	ExpiresAt   time.Time
	UserID      uuid.UUID
}

type ReservationService interface {
	Reserve(ctx context.Context, cmd ReserveCommand) (uuid.UUID, error)
	ReserveTx(ctx context.Context, tx *gorm.DB, cmd ReserveCommand) (uuid.UUID, error)
	// Release removes one hold. An unknown id is reported as *NotFoundError.
	Release(ctx context.Context, id uuid.UUID) error
	// ReleaseByReferenceTx drops every hold for a business reference and is
	// a no-op when there are none.
	ReleaseByReferenceTx(ctx context.Context, tx *gorm.DB, referenceID string) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
	ListActive(ctx context.Context, productID uuid.UUID) ([]dto.ReservationResponse, error)
}

type reservationService struct {
	repo     repository.ReservationRepository
	products repository.ProductRepository
	stock    StockService
	now      func() time.Time
}

func NewReservationService(repo repository.ReservationRepository, products repository.ProductRepository, stock StockService) ReservationService {
	return &reservationService{repo: repo, products: products, stock: stock, now: time.Now}
}

func (s *reservationService) Reserve(ctx context.Context, cmd ReserveCommand) (uuid.UUID, error) {
	var id uuid.UUID
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		id, err = s.ReserveTx(ctx, tx, cmd)
		return err
	})
	return id, err
}

func (s *reservationService) ReserveTx(ctx context.Context, tx *gorm.DB, cmd ReserveCommand) (uuid.UUID, error) {
	if !cmd.Type.IsValid() {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidReservationType, cmd.Type)
	}
	if !cmd.ExpiresAt.After(s.now()) {
		return uuid.Nil, ErrReservationExpiry
	}

	// Serialise holds per product: two concurrent reservations must not both
	// pass validation against the same free stock.
	if tx != nil {
		if _, err := s.products.LockByID(ctx, tx, cmd.ProductID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("lock product: %w", err)
		}
	}

	res, err := s.stock.ValidateStockAvailabilityTx(ctx, tx, cmd.ProductID, cmd.Quantity, cmd.BatchID)
	if err != nil {
		return uuid.Nil, err
	}
	if !res.IsValid {
		return uuid.Nil, &StockValidationError{Errors: res.Errors, Warnings: res.Warnings, Causes: res.Causes}
	}

	r := &model.StockReservation{
		ID:          uuid.New(),
		ProductID:   cmd.ProductID,
		BatchID:     cmd.BatchID,
		Quantity:    cmd.Quantity,
		Type:        cmd.Type,
		ReferenceID: cmd.ReferenceID,
		ExpiresAt:   cmd.ExpiresAt,
		UserID:      cmd.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, tx, r); err != nil {
		return uuid.Nil, fmt.Errorf("create reservation: %w", err)
	}

	log.Info().
		Str("reservation_id", r.ID.String()).
		Str("product_id", r.ProductID.String()).
		Int("quantity", r.Quantity).
		Str("reference_id", r.ReferenceID).
		Time("expires_at", r.ExpiresAt).
		Msg("stock reserved")
	return r.ID, nil
}

func (s *reservationService) Release(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.Delete(ctx, nil, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Entity: "reservation", ID: id.String()}
	}
	log.Info().Str("reservation_id", id.String()).Msg("reservation released")
	return nil
}

func (s *reservationService) ReleaseByReferenceTx(ctx context.Context, tx *gorm.DB, referenceID string) (int64, error) {
	return s.repo.DeleteByReference(ctx, tx, referenceID)
}

func (s *reservationService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("expired reservations removed")
	}
	return n, nil
}

func (s *reservationService) ListActive(ctx context.Context, productID uuid.UUID) ([]dto.ReservationResponse, error) {
	rows, err := s.repo.ListActiveByProduct(ctx, productID, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]dto.ReservationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, reservationToResponse(&rows[i]))
	}
	return out, nil
}

func reservationToResponse(r *model.StockReservation) dto.ReservationResponse {
	return dto.ReservationResponse{
		ID:          r.ID.String(),
		ProductID:   r.ProductID.String(),
		BatchID:     uuidStrPtr(r.BatchID),
		Quantity:    r.Quantity,
		Type:        string(r.Type),
		ReferenceID: r.ReferenceID,
		ExpiresAt:   r.ExpiresAt.Format(time.RFC3339),
		UserID:      r.UserID.String(),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}
