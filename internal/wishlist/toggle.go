package wishlist

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
)

// ToggleState is the lifecycle of one heart-button press.
type ToggleState string

const (
	ToggleIdle      ToggleState = "idle"
	TogglePending   ToggleState = "pending"
	ToggleCommitted ToggleState = "committed"
	ToggleReverted  ToggleState = "reverted"
)

// Toggle is the last known toggle for one product. Saved is what the shopper sees highlighted.
type Toggle struct {
	State     ToggleState `json:"state"`
	Saved     bool        `json:"saved"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ToggleResult reports where a toggle ended up.
type ToggleResult struct {
	ProductID  string         `json:"productId"`
	State      ToggleState    `json:"state"`
	InWishlist bool           `json:"inWishlist"`
	Count      int            `json:"count"`
	Message    string         `json:"message,omitempty"`
	Code       pkgerrors.Code `json:"code,omitempty"`
}

// ToggleOf returns the toggle for productID. Products never toggled are idle and
// highlighted when the last fetched list holds them.
func (st State) ToggleOf(productID string) Toggle {
	listed := contains(st.Items, productID)
	t, ok := st.Toggles[productID]
	if !ok {
		return Toggle{State: ToggleIdle, Saved: listed}
	}
	if t.State == ToggleCommitted && !st.SyncedAt.After(t.UpdatedAt) {
		return t
	}
	t.Saved = listed
	return t
}

// Toggle flips a product's wishlist membership. The flip is stored as pending before the call
// and either committed or reverted afterwards. A second toggle for the same product while one
// is pending is refused.
func (s *service) Toggle(ctx context.Context, sessionID, productID string) (ToggleResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ToggleResult{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	sess, user, err := s.open(ctx, sessionID)
	if err != nil {
		return ToggleResult{}, err
	}

	pendingKey := statestore.WishlistPendingKey(productID)
	won, err := statestore.Claim(ctx, sess, pendingKey, s.now().UTC(), s.pendingTTL)
	if err != nil {
		return ToggleResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim wishlist toggle")
	}
	if !won {
		return ToggleResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "a wishlist change for this product is already in progress").
			WithDetails(map[string]any{"productId": productID, "state": TogglePending})
	}
	defer func() {
		if err := sess.Clear(context.WithoutCancel(ctx), pendingKey); err != nil {
			s.logg.Error(ctx, "wishlist.toggle_release_failed", err)
		}
	}()

	state, err := s.load(ctx, sess)
	if err != nil {
		return ToggleResult{}, err
	}
	if state.SyncedAt.IsZero() {
		if synced := s.sync(ctx, sess, user); synced.Success {
			if state, err = s.load(ctx, sess); err != nil {
				return ToggleResult{}, err
			}
		}
	}
	was := state.ToggleOf(productID).Saved
	target := !was

	state.Toggles[productID] = Toggle{State: TogglePending, Saved: target, UpdatedAt: s.now().UTC()}
	if err := s.save(ctx, sess, state); err != nil {
		return ToggleResult{}, err
	}

	action := "remove"
	if target {
		action = "add"
	}
	resp, err := s.post(ctx, sess, user, action, productID)
	if err == nil && !resp.OK() {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "wishlist update failed"
		}
		err = pkgerrors.New(pkgerrors.CodeConflict, msg)
	}
	if err != nil {
		state.Toggles[productID] = Toggle{State: ToggleReverted, Saved: was, UpdatedAt: s.now().UTC()}
		if saveErr := s.save(ctx, sess, state); saveErr != nil {
			s.logg.Error(ctx, "wishlist.toggle_revert_save_failed", saveErr)
		}
		fail := failure(err, state.Items)
		return ToggleResult{
			ProductID:  productID,
			State:      ToggleReverted,
			InWishlist: was,
			Count:      len(state.Items),
			Message:    fail.Message,
			Code:       fail.Code,
		}, nil
	}

	state.Toggles[productID] = Toggle{State: ToggleCommitted, Saved: target, UpdatedAt: s.now().UTC()}
	if err := s.save(ctx, sess, state); err != nil {
		return ToggleResult{}, err
	}
	count := resp.Count
	if synced := s.sync(ctx, sess, user); synced.Success {
		count = synced.Count
	}
	return ToggleResult{
		ProductID:  productID,
		State:      ToggleCommitted,
		InWishlist: target,
		Count:      count,
	}, nil
}
