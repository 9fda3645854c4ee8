/**
 * @description
 * Split payment lifecycle logic: creating a request with its shares, applying
 * confirmed share payments from webhooks, completing the request when the last
 * share lands, and the scheduled expiry sweep.
 *
 * Key features:
 * - Validates that custom share amounts sum to the grand total before anything
 *   is persisted.
 * - Share payment confirmation is idempotent: duplicate webhook deliveries for
 *   a paid share change nothing and trigger no notifications.
 * - Completion is won by exactly one caller, so the group order is issued and
 *   payers are notified exactly once.
 *
 * @dependencies
 * - context, crypto/rand, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal: Identifiers and money.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/messaging, pkg/rabbitmq, pkg/ticketing: For external communication.
 */

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/monitoring"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/rabbitmq"
	"github.com/ticketrack/payments-service/pkg/ticketing"
)

const (
	defaultDeadlineHours = 48
	maxDeadlineHours     = 168
	minSplitMembers      = 2
	maxSplitMembers      = 20
)

var (
	ErrTooFewMembers    = errors.New("a split payment needs at least two members")
	ErrTooManyMembers   = errors.New("too many members for a split payment")
	ErrSharesDoNotSum   = errors.New("share amounts do not sum to the grand total")
	ErrMissingShareAmnt = errors.New("custom splits require an amount per member")
	ErrNotCancellable   = errors.New("split payment cannot be cancelled")
)

// CreateSplitPayment creates a split payment request with one share per
// member and emails every member their pay link.
func (s *Service) CreateSplitPayment(ctx context.Context, initiatedBy uuid.UUID, payload domain.CreateSplitPaymentPayload) (*domain.SplitPaymentRequest, []domain.PaymentShare, error) {
	if len(payload.Members) < minSplitMembers {
		return nil, nil, ErrTooFewMembers
	}
	if len(payload.Members) > maxSplitMembers {
		return nil, nil, ErrTooManyMembers
	}

	event, err := s.repo.FindEventByID(ctx, payload.EventID)
	if err != nil {
		return nil, nil, err
	}

	grandTotal := payload.TotalAmount.Add(payload.ServiceFee)
	amounts, err := splitAmounts(payload, grandTotal)
	if err != nil {
		return nil, nil, err
	}

	deadlineHours := payload.DeadlineHours
	if deadlineHours <= 0 {
		deadlineHours = defaultDeadlineHours
	}
	if deadlineHours > maxDeadlineHours {
		deadlineHours = maxDeadlineHours
	}

	now := s.now()
	sp := &domain.SplitPaymentRequest{
		ID:              uuid.New(),
		EventID:         payload.EventID,
		SessionID:       payload.SessionID,
		InitiatedBy:     initiatedBy,
		TicketSelection: payload.TicketSelection,
		TotalAmount:     payload.TotalAmount,
		ServiceFee:      payload.ServiceFee,
		GrandTotal:      grandTotal,
		Currency:        payload.Currency,
		SplitType:       payload.SplitType,
		Status:          domain.SplitStatusPending,
		ExpiresAt:       now.Add(time.Duration(deadlineHours) * time.Hour),
	}

	shares := make([]domain.PaymentShare, 0, len(payload.Members))
	for i, member := range payload.Members {
		token, err := newPaymentToken()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate payment token: %w", err)
		}
		shares = append(shares, domain.PaymentShare{
			ID:             uuid.New(),
			SplitPaymentID: sp.ID,
			UserID:         member.UserID,
			Name:           member.Name,
			Email:          member.Email,
			ShareAmount:    amounts[i],
			Currency:       payload.Currency,
			PaymentStatus:  domain.ShareStatusPending,
			PaymentToken:   token,
		})
	}

	if err := s.repo.CreateSplitPaymentWithShares(ctx, sp, shares); err != nil {
		return nil, nil, fmt.Errorf("failed to create split payment: %w", err)
	}

	for _, share := range shares {
		s.sendShareInvite(ctx, share, sp, event)
	}

	log.Printf("level=info component=split msg=\"split payment created\" split_id=%s event_id=%s members=%d grand_total=%s",
		sp.ID, sp.EventID, len(shares), grandTotal.StringFixed(2))
	return sp, shares, nil
}

// splitAmounts computes each member's share. Equal splits distribute the
// remainder cents to the first members; custom splits must sum exactly.
func splitAmounts(payload domain.CreateSplitPaymentPayload, grandTotal decimal.Decimal) ([]decimal.Decimal, error) {
	n := int64(len(payload.Members))

	if payload.SplitType == domain.SplitTypeCustom {
		amounts := make([]decimal.Decimal, 0, n)
		sum := decimal.Zero
		for _, member := range payload.Members {
			if member.Amount == nil {
				return nil, ErrMissingShareAmnt
			}
			amounts = append(amounts, *member.Amount)
			sum = sum.Add(*member.Amount)
		}
		if !sum.Equal(grandTotal) {
			return nil, ErrSharesDoNotSum
		}
		return amounts, nil
	}

	base := grandTotal.Div(decimal.NewFromInt(n)).RoundDown(2)
	remainder := grandTotal.Sub(base.Mul(decimal.NewFromInt(n)))
	cent := decimal.New(1, -2)

	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		amounts[i] = base
		if remainder.GreaterThanOrEqual(cent) {
			amounts[i] = amounts[i].Add(cent)
			remainder = remainder.Sub(cent)
		}
	}
	return amounts, nil
}

func newPaymentToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GetSplitPayment returns a split payment request with its shares.
func (s *Service) GetSplitPayment(ctx context.Context, splitID uuid.UUID) (*domain.SplitPaymentRequest, []domain.PaymentShare, error) {
	sp, err := s.repo.FindSplitPaymentByID(ctx, splitID)
	if err != nil {
		return nil, nil, err
	}
	shares, err := s.repo.FindSharesBySplitPaymentID(ctx, splitID)
	if err != nil {
		return nil, nil, err
	}
	return sp, shares, nil
}

// GetShareByToken resolves a share and its parent request from a pay-link token.
func (s *Service) GetShareByToken(ctx context.Context, token string) (*domain.PaymentShare, *domain.SplitPaymentRequest, error) {
	share, err := s.repo.FindShareByPaymentToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	sp, err := s.repo.FindSplitPaymentByID(ctx, share.SplitPaymentID)
	if err != nil {
		return nil, nil, err
	}
	return share, sp, nil
}

// CancelSplitPayment cancels a pending request. Only the initiator can cancel
// and only while no share has been paid.
func (s *Service) CancelSplitPayment(ctx context.Context, splitID uuid.UUID, initiatedBy uuid.UUID) error {
	cancelled, err := s.repo.CancelSplitPayment(ctx, splitID, initiatedBy)
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrNotCancellable
	}
	log.Printf("level=info component=split msg=\"split payment cancelled\" split_id=%s", splitID)
	return nil
}

// ConfirmSharePayment applies a verified payment confirmation to a share. A
// confirmation for an already paid share is a no-op. When the confirmation is
// the last one outstanding, the split completes: the group order is issued,
// every payer is emailed, and a completion event is published.
func (s *Service) ConfirmSharePayment(ctx context.Context, shareID uuid.UUID, provider, reference string) error {
	paidNow, err := s.repo.MarkSharePaid(ctx, shareID, reference, provider, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark share paid: %w", err)
	}
	if !paidNow {
		log.Printf("level=info component=split msg=\"duplicate payment confirmation ignored\" share_id=%s provider=%s", shareID, provider)
		return nil
	}

	share, err := s.repo.FindShareByID(ctx, shareID)
	if err != nil {
		return err
	}

	s.publish(ctx, rabbitmq.RoutingKeySharePaid, domain.SharePaidEvent{
		SplitPaymentID: share.SplitPaymentID,
		ShareID:        share.ID,
		PayerEmail:     share.Email,
		Amount:         share.ShareAmount,
		Currency:       share.Currency,
		Provider:       provider,
		Timestamp:      s.now(),
	})

	completed, err := s.repo.CompleteSplitPaymentIfAllPaid(ctx, share.SplitPaymentID, s.now())
	if err != nil {
		return fmt.Errorf("failed to check split completion: %w", err)
	}
	if !completed {
		return nil
	}
	return s.finalizeCompletedSplit(ctx, share.SplitPaymentID, provider)
}

// finalizeCompletedSplit runs once per split, on the caller that won the
// completion transition.
func (s *Service) finalizeCompletedSplit(ctx context.Context, splitID uuid.UUID, provider string) error {
	sp, err := s.repo.FindSplitPaymentByID(ctx, splitID)
	if err != nil {
		return err
	}
	shares, err := s.repo.FindSharesBySplitPaymentID(ctx, splitID)
	if err != nil {
		return err
	}
	event, err := s.repo.FindEventByID(ctx, sp.EventID)
	if err != nil {
		return err
	}

	initiator := shares[0]
	for _, share := range shares {
		if sp.InitiatedBy != uuid.Nil && share.UserID != nil && *share.UserID == sp.InitiatedBy {
			initiator = share
		}
	}

	lines := make([]ticketing.TicketLine, 0, len(sp.TicketSelection))
	for _, sel := range sp.TicketSelection {
		lines = append(lines, ticketing.TicketLine{
			TicketTypeID: sel.TicketTypeID.String(),
			Quantity:     sel.Quantity,
			UnitPrice:    sel.Price,
		})
	}

	orderResp, err := s.ticketing.CreateGroupOrder(ctx, ticketing.CreateGroupOrderRequest{
		EventID:         sp.EventID.String(),
		SplitPaymentID:  sp.ID.String(),
		BuyerEmail:      initiator.Email,
		BuyerName:       initiator.Name,
		TotalAmount:     sp.GrandTotal,
		Currency:        sp.Currency,
		PaymentProvider: provider,
		Lines:           lines,
	})
	if err != nil {
		// The split stays completed; order issuance is retried out of band.
		log.Printf("level=error component=split msg=\"group order issuance failed\" split_id=%s err=%v", splitID, err)
		return fmt.Errorf("failed to issue group order: %w", err)
	}

	orderID, err := uuid.Parse(orderResp.OrderID)
	if err != nil {
		return fmt.Errorf("ticketing service returned invalid order id %q: %w", orderResp.OrderID, err)
	}
	if err := s.repo.AttachOrderToSplitPayment(ctx, sp.ID, orderID); err != nil {
		return err
	}

	paidAt := s.now()
	if err := s.repo.CreateGroupOrderRecord(ctx, &domain.Order{
		ID:              orderID,
		OrderNumber:     orderResp.OrderNumber,
		EventID:         sp.EventID,
		BuyerEmail:      initiator.Email,
		BuyerName:       initiator.Name,
		Status:          domain.OrderStatusCompleted,
		TotalAmount:     sp.GrandTotal,
		Currency:        sp.Currency,
		PaymentProvider: &provider,
		IsGroupOrder:    true,
		PaidAt:          &paidAt,
	}); err != nil {
		log.Printf("level=error component=split msg=\"local order record failed\" split_id=%s order_id=%s err=%v", sp.ID, orderID, err)
	}

	for _, share := range shares {
		s.sendFullyPaidEmail(ctx, share, event, orderResp.OrderNumber)
	}

	s.publish(ctx, rabbitmq.RoutingKeySplitCompleted, domain.SplitCompletedEvent{
		SplitPaymentID: sp.ID,
		EventID:        sp.EventID,
		OrderID:        orderID,
		GrandTotal:     sp.GrandTotal,
		Currency:       sp.Currency,
		Timestamp:      s.now(),
	})

	monitoring.TrackSplitCompleted()
	log.Printf("level=info component=split msg=\"split payment completed\" split_id=%s order_id=%s tickets=%d", sp.ID, orderID, orderResp.TicketCount)
	return nil
}

// SettleOrderPayment applies a verified payment confirmation to a regular
// order. Duplicate confirmations are a no-op.
func (s *Service) SettleOrderPayment(ctx context.Context, orderID uuid.UUID, provider, reference string) error {
	settledNow, err := s.repo.MarkOrderPaid(ctx, orderID, provider, reference)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if !settledNow {
		log.Printf("level=info component=checkout msg=\"duplicate order confirmation ignored\" order_id=%s provider=%s", orderID, provider)
		return nil
	}

	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	s.publish(ctx, rabbitmq.RoutingKeyOrderPaid, domain.OrderPaidEvent{
		OrderID:    order.ID,
		EventID:    order.EventID,
		BuyerEmail: order.BuyerEmail,
		Amount:     order.TotalAmount,
		Currency:   order.Currency,
		Provider:   provider,
		Timestamp:  s.now(),
	})
	return nil
}

// ExpirePendingSplitPayments transitions every pending request past its
// deadline to expired, releases held inventory, and notifies initiators.
func (s *Service) ExpirePendingSplitPayments(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpirePendingSplitPaymentsPastDeadline(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, sp := range expired {
		if err := s.ticketing.ReleaseHold(ctx, ticketing.ReleaseHoldRequest{
			EventID:        sp.EventID.String(),
			SplitPaymentID: sp.ID.String(),
		}); err != nil {
			log.Printf("level=warn component=split msg=\"inventory release failed\" split_id=%s err=%v", sp.ID, err)
		}

		s.sendExpiryNotice(ctx, &sp)

		s.publish(ctx, rabbitmq.RoutingKeySplitExpired, domain.SplitExpiredEvent{
			SplitPaymentID: sp.ID,
			EventID:        sp.EventID,
			Timestamp:      s.now(),
		})
	}

	if len(expired) > 0 {
		monitoring.TrackSplitExpired(len(expired))
		log.Printf("level=info component=split msg=\"expiry sweep finished\" expired=%d", len(expired))
	}
	return len(expired), nil
}

func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.Exchange, routingKey, body); err != nil {
		log.Printf("level=warn component=events msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// sendExpiryNotice emails the initiator that the deadline passed and the
// tickets were released. Best effort.
func (s *Service) sendExpiryNotice(ctx context.Context, sp *domain.SplitPaymentRequest) {
	shares, err := s.repo.FindSharesBySplitPaymentID(ctx, sp.ID)
	if err != nil || len(shares) == 0 {
		log.Printf("level=warn component=split msg=\"expiry notice skipped\" split_id=%s err=%v", sp.ID, err)
		return
	}
	event, err := s.repo.FindEventByID(ctx, sp.EventID)
	if err != nil {
		log.Printf("level=warn component=split msg=\"expiry notice skipped\" split_id=%s err=%v", sp.ID, err)
		return
	}

	initiator := shares[0]
	for _, share := range shares {
		if sp.InitiatedBy != uuid.Nil && share.UserID != nil && *share.UserID == sp.InitiatedBy {
			initiator = share
		}
	}

	msg := messaging.Message{
		Recipient: initiator.Email,
		Subject:   fmt.Sprintf("Your group's tickets to %s were released", event.Title),
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>The payment deadline for your group's tickets to <strong>%s</strong> passed before everyone paid.</p>"+
				"<p>The held tickets have been released. You can start a new purchase any time.</p>",
			initiator.Name, event.Title,
		),
	}
	if err := s.dispatcher.Send(ctx, messaging.ChannelEmail, msg); err != nil {
		log.Printf("level=warn component=split msg=\"expiry notice failed\" split_id=%s err=%v", sp.ID, err)
	}
}

func (s *Service) sendShareInvite(ctx context.Context, share domain.PaymentShare, sp *domain.SplitPaymentRequest, event *domain.Event) {
	payLink := fmt.Sprintf("%s/pay-share/%s", s.baseURL, share.PaymentToken)
	msg := messaging.Message{
		Recipient: share.Email,
		Subject:   fmt.Sprintf("Your share of tickets to %s", event.Title),
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>%s invited you to split the cost of tickets to <strong>%s</strong>.</p>"+
				"<p>Your share is <strong>%s %s</strong>. Pay before %s to secure the tickets.</p>"+
				"<p><a href=\"%s\">Pay your share</a></p>",
			share.Name, "Your group", event.Title,
			share.Currency, share.ShareAmount.StringFixed(2),
			sp.ExpiresAt.Format("Jan 2, 2006 15:04 MST"), payLink,
		),
	}
	if err := s.dispatcher.Send(ctx, messaging.ChannelEmail, msg); err != nil {
		log.Printf("level=warn component=split msg=\"invite email failed\" share_id=%s err=%v", share.ID, err)
	}
}

func (s *Service) sendFullyPaidEmail(ctx context.Context, share domain.PaymentShare, event *domain.Event, orderNumber string) {
	msg := messaging.Message{
		Recipient: share.Email,
		Subject:   fmt.Sprintf("You're going to %s!", event.Title),
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>Everyone has paid their share. Your group's tickets to <strong>%s</strong> are confirmed.</p>"+
				"<p>Order number: <strong>%s</strong>. Tickets have been emailed to each member.</p>",
			share.Name, event.Title, orderNumber,
		),
	}
	if err := s.dispatcher.Send(ctx, messaging.ChannelEmail, msg); err != nil {
		log.Printf("level=warn component=split msg=\"confirmation email failed\" share_id=%s err=%v", share.ID, err)
	}
}
