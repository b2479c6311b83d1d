package orders

import (
	"context"

	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// ServiceParams groups dependencies for the order history service.
type ServiceParams struct {
	Servlet *servlet.Client
	Store   *statestore.Store
	Logger  *logger.Logger
}

// Service reads a shopper's past orders.
type Service interface {
	History(ctx context.Context, sessionID string) (History, error)
}

// History is the order list plus the receipt of the most recent checkout, if any.
type History struct {
	Orders    []types.Order      `json:"orders"`
	LastOrder *types.PlacedOrder `json:"lastOrder,omitempty"`
}

type service struct {
	servlet *servlet.Client
	store   *statestore.Store
	logg    *logger.Logger
}

// NewService builds an order history service.
func NewService(params ServiceParams) (Service, error) {
	if params.Servlet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "servlet client is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state store is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{servlet: params.Servlet, store: params.Store, logg: logg}, nil
}

func (s *service) History(ctx context.Context, sessionID string) (History, error) {
	sess := s.store.Session(sessionID)
	user, err := session.RequireUser(ctx, sess)
	if err != nil {
		return History{}, err
	}

	var list []types.Order
	if err := s.servlet.Get(ctx, sess.ID(), servlet.EndpointOrderHistory, nil, &list); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, user.UserID), "orders.history_failed")
		return History{}, err
	}
	if list == nil {
		list = []types.Order{}
	}

	out := History{Orders: list}
	last, ok, err := statestore.Load[types.PlacedOrder](ctx, sess, statestore.KeyLastOrder)
	if err != nil {
		s.logg.Error(ctx, "orders.last_order_load_failed", err)
	} else if ok {
		out.LastOrder = &last
	}
	return out, nil
}
