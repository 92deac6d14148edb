package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"chem-admin/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// fakeQuotationRepo keeps quotations and messages in memory and interprets
// the two guard shapes the thread service uses: an exact status match and a
// {"$ne": status} exclusion. failInsert makes the message write inside a
// transition fail, leaving the quotation untouched, the way an aborted
// transaction would. beforeTransition, when set, runs just before the guard
// is evaluated so tests can interleave a concurrent write.
type fakeQuotationRepo struct {
	quotations       map[primitive.ObjectID]*models.Quotation
	messages         []models.QuotationMessage
	clock            time.Time
	failInsert       bool
	beforeTransition func()
}

func newFakeQuotationRepo() *fakeQuotationRepo {
	return &fakeQuotationRepo{
		quotations: make(map[primitive.ObjectID]*models.Quotation),
		clock:      time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeQuotationRepo) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeQuotationRepo) Create(ctx context.Context, q *models.Quotation) error {
	q.ID = primitive.NewObjectID()
	q.Thread.Status = models.ThreadActive
	q.CreatedAt = f.now()
	q.UpdatedAt = q.CreatedAt
	f.quotations[q.ID] = q
	return nil
}

func (f *fakeQuotationRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Quotation, error) {
	q, ok := f.quotations[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *q
	return &copied, nil
}

func (f *fakeQuotationRepo) GetAll(ctx context.Context) ([]models.Quotation, error) {
	var out []models.Quotation
	for _, q := range f.quotations {
		out = append(out, *q)
	}
	return out, nil
}

func (f *fakeQuotationRepo) guardHolds(q *models.Quotation, guard bson.M) bool {
	cond, ok := guard["thread.status"]
	if !ok {
		return true
	}
	switch v := cond.(type) {
	case bson.M:
		if ne, ok := v["$ne"]; ok {
			return q.Thread.Status != ne.(models.ThreadStatus)
		}
		return false
	case models.ThreadStatus:
		return q.Thread.Status == v
	}
	return false
}

func (f *fakeQuotationRepo) TransitionThread(ctx context.Context, id primitive.ObjectID, guard bson.M, set bson.M, unset bson.M, msg *models.QuotationMessage) (bool, error) {
	if f.beforeTransition != nil {
		f.beforeTransition()
	}
	q, ok := f.quotations[id]
	if !ok || !f.guardHolds(q, guard) {
		return false, nil
	}
	if msg != nil && f.failInsert {
		return false, errors.New("message insert failed")
	}
	for k, v := range set {
		switch k {
		case "thread.status":
			q.Thread.Status = v.(models.ThreadStatus)
		case "thread.closure_requested_by":
			s := v.(string)
			q.Thread.ClosureRequestedBy = &s
		case "thread.closure_requested_at":
			t := v.(time.Time)
			q.Thread.ClosureRequestedAt = &t
		case "thread.closure_reason":
			q.Thread.ClosureReason = v.(string)
		case "thread.user_permission_to_close":
			q.Thread.UserPermissionToClose = v.(bool)
		case "thread.closure_rejected_at":
			t := v.(time.Time)
			q.Thread.ClosureRejectedAt = &t
		case "thread.closure_rejection_reason":
			q.Thread.ClosureRejectionReason = v.(string)
		case "thread.closed_by":
			s := v.(string)
			q.Thread.ClosedBy = &s
		case "thread.closed_at":
			t := v.(time.Time)
			q.Thread.ClosedAt = &t
		}
	}
	for k := range unset {
		switch k {
		case "thread.closure_requested_by":
			q.Thread.ClosureRequestedBy = nil
		case "thread.closure_requested_at":
			q.Thread.ClosureRequestedAt = nil
		case "thread.closure_reason":
			q.Thread.ClosureReason = ""
		case "thread.closure_rejected_at":
			q.Thread.ClosureRejectedAt = nil
		case "thread.closure_rejection_reason":
			q.Thread.ClosureRejectionReason = ""
		}
	}
	q.UpdatedAt = f.now()
	if msg != nil {
		msg.ID = primitive.NewObjectID()
		msg.CreatedAt = f.now()
		msg.UpdatedAt = msg.CreatedAt
		f.messages = append(f.messages, *msg)
	}
	return true, nil
}

func (f *fakeQuotationRepo) GetMessages(ctx context.Context, quotationID primitive.ObjectID) ([]models.QuotationMessage, error) {
	var out []models.QuotationMessage
	for _, m := range f.messages {
		if m.QuotationID == quotationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeQuotationRepo) MarkMessagesRead(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole, ids []primitive.ObjectID) (int64, error) {
	var count int64
	idSet := make(map[primitive.ObjectID]bool)
	for _, id := range ids {
		idSet[id] = true
	}
	for i := range f.messages {
		m := &f.messages[i]
		if m.QuotationID != quotationID || m.AuthorRole == reader {
			continue
		}
		if len(ids) > 0 && !idSet[m.ID] {
			continue
		}
		if reader == models.RoleAdmin && !m.IsReadByAdmin {
			m.IsReadByAdmin = true
			count++
		} else if reader == models.RoleUser && !m.IsReadByUser {
			m.IsReadByUser = true
			count++
		}
	}
	return count, nil
}

func (f *fakeQuotationRepo) CountUnread(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole) (int64, error) {
	var count int64
	for _, m := range f.messages {
		if m.QuotationID != quotationID || m.AuthorRole == reader {
			continue
		}
		if reader == models.RoleAdmin && !m.IsReadByAdmin {
			count++
		} else if reader == models.RoleUser && !m.IsReadByUser {
			count++
		}
	}
	return count, nil
}

// fakeNotifier records dispatch requests.
type fakeNotifier struct {
	inputs []models.CreateNotificationInput
}

func (f *fakeNotifier) CreateNotification(ctx context.Context, in models.CreateNotificationInput) (primitive.ObjectID, error) {
	f.inputs = append(f.inputs, in)
	return primitive.NewObjectID(), nil
}

func newThreadFixture(t *testing.T) (ThreadService, *fakeQuotationRepo, *fakeNotifier, primitive.ObjectID) {
	t.Helper()
	repo := newFakeQuotationRepo()
	notifier := &fakeNotifier{}
	svc := NewThreadService(repo, notifier)
	q := &models.Quotation{UserID: "USR-100", UserName: "Priya", ProductName: "Benzyl Alcohol"}
	if err := svc.CreateQuotation(context.Background(), q); err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	return svc, repo, notifier, q.ID
}

func TestClosureHappyPath(t *testing.T) {
	svc, repo, _, qid := newThreadFixture(t)
	ctx := context.Background()

	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", "stale"); err != nil {
		t.Fatalf("RequestClosure: %v", err)
	}
	q := repo.quotations[qid]
	if q.Thread.Status != models.ThreadAwaitingUserClose {
		t.Fatalf("status after request = %s, want %s", q.Thread.Status, models.ThreadAwaitingUserClose)
	}

	if err := svc.GrantClosurePermission(ctx, qid, "USR-100", "Priya"); err != nil {
		t.Fatalf("GrantClosurePermission: %v", err)
	}
	if q.Thread.Status != models.ThreadUserApprovedClose {
		t.Fatalf("status after grant = %s, want %s", q.Thread.Status, models.ThreadUserApprovedClose)
	}
	if !q.Thread.UserPermissionToClose {
		t.Error("UserPermissionToClose not set after grant")
	}

	if err := svc.CloseThread(ctx, qid, "adm-1", "Alex"); err != nil {
		t.Fatalf("CloseThread: %v", err)
	}
	if q.Thread.Status != models.ThreadClosed {
		t.Fatalf("status after close = %s, want %s", q.Thread.Status, models.ThreadClosed)
	}
	if q.Thread.ClosedBy == nil || *q.Thread.ClosedBy != "adm-1" {
		t.Error("ClosedBy not recorded")
	}
	if q.Thread.ClosedAt == nil {
		t.Error("ClosedAt not recorded")
	}

	messages, _ := svc.GetMessages(ctx, qid)
	wantTypes := []models.MessageType{models.MsgClosureRequest, models.MsgClosureGranted, models.MsgThreadClosed}
	if len(messages) != len(wantTypes) {
		t.Fatalf("got %d system messages, want %d", len(messages), len(wantTypes))
	}
	for i, want := range wantTypes {
		if messages[i].Type != want {
			t.Errorf("message[%d].Type = %s, want %s", i, messages[i].Type, want)
		}
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Error("message timestamps are not monotonically non-decreasing")
		}
	}
}

func TestClosedThreadRejectsMessages(t *testing.T) {
	svc, _, _, qid := newThreadFixture(t)
	ctx := context.Background()

	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.GrantClosurePermission(ctx, qid, "USR-100", "Priya"); err != nil {
		t.Fatal(err)
	}
	if err := svc.CloseThread(ctx, qid, "adm-1", "Alex"); err != nil {
		t.Fatal(err)
	}

	for _, role := range []models.AuthorRole{models.RoleUser, models.RoleAdmin} {
		_, err := svc.CreateMessage(ctx, qid, "someone", "Someone", role, "hello?", "")
		if !errors.Is(err, ErrThreadClosed) {
			t.Errorf("CreateMessage as %s on closed thread: err = %v, want ErrThreadClosed", role, err)
		}
	}

	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", "again"); !errors.Is(err, ErrThreadAlreadyClosed) {
		t.Errorf("RequestClosure on closed thread: err = %v, want ErrThreadAlreadyClosed", err)
	}
}

func TestClosureRejectionReturnsThreadToActive(t *testing.T) {
	svc, repo, _, qid := newThreadFixture(t)
	ctx := context.Background()

	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", "stale"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RejectClosureRequest(ctx, qid, "USR-100", "Priya", "still needed"); err != nil {
		t.Fatalf("RejectClosureRequest: %v", err)
	}

	q := repo.quotations[qid]
	if q.Thread.Status != models.ThreadActive {
		t.Fatalf("status after rejection = %s, want %s", q.Thread.Status, models.ThreadActive)
	}
	if q.Thread.UserPermissionToClose {
		t.Error("UserPermissionToClose should be false after rejection")
	}
	if q.Thread.ClosureRequestedBy != nil {
		t.Error("rejected closure request should be discarded")
	}
	if q.Thread.ClosureRejectionReason != "still needed" {
		t.Errorf("rejection reason = %q", q.Thread.ClosureRejectionReason)
	}

	messages, _ := svc.GetMessages(ctx, qid)
	last := messages[len(messages)-1]
	if last.Type != models.MsgClosureRejected {
		t.Errorf("last message type = %s, want %s", last.Type, models.MsgClosureRejected)
	}

	// A fresh request must succeed after rejection and must not carry the
	// old rejection alongside the new request.
	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", "retry"); err != nil {
		t.Errorf("second RequestClosure after rejection: %v", err)
	}
	if q.Thread.ClosureRejectedAt != nil || q.Thread.ClosureRejectionReason != "" {
		t.Errorf("stale rejection fields on new request: at=%v reason=%q",
			q.Thread.ClosureRejectedAt, q.Thread.ClosureRejectionReason)
	}
	if q.Thread.ClosureReason != "retry" {
		t.Errorf("closure reason = %q, want the new request's reason", q.Thread.ClosureReason)
	}
}

func TestTransitionFailureLeavesStateUnchanged(t *testing.T) {
	svc, repo, _, qid := newThreadFixture(t)
	ctx := context.Background()
	repo.failInsert = true

	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", "stale"); err == nil {
		t.Fatal("RequestClosure should surface the failed write")
	}

	q := repo.quotations[qid]
	if q.Thread.Status != models.ThreadActive {
		t.Fatalf("status after failed request = %s, want %s (no partial write)",
			q.Thread.Status, models.ThreadActive)
	}
	if q.Thread.ClosureRequestedBy != nil {
		t.Error("request fields set despite failed write")
	}
	if len(repo.messages) != 0 {
		t.Errorf("stored %d messages after failed write, want 0", len(repo.messages))
	}

	// The retry goes through cleanly once the store recovers.
	repo.failInsert = false
	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", "stale"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if q.Thread.Status != models.ThreadAwaitingUserClose {
		t.Errorf("status after retry = %s, want %s", q.Thread.Status, models.ThreadAwaitingUserClose)
	}
	if len(repo.messages) != 1 {
		t.Errorf("stored %d messages after retry, want 1", len(repo.messages))
	}
}

func TestCloseDuringMessageWriteRejectsMessage(t *testing.T) {
	svc, repo, _, qid := newThreadFixture(t)
	ctx := context.Background()

	// The thread closes between the service's read and its guarded write.
	repo.beforeTransition = func() {
		repo.beforeTransition = nil
		repo.quotations[qid].Thread.Status = models.ThreadClosed
	}

	_, err := svc.CreateMessage(ctx, qid, "USR-100", "Priya", models.RoleUser, "too late", "")
	if !errors.Is(err, ErrThreadClosed) {
		t.Fatalf("CreateMessage racing a close: err = %v, want ErrThreadClosed", err)
	}
	if len(repo.messages) != 0 {
		t.Errorf("stored %d messages in a closed thread, want 0", len(repo.messages))
	}
}

func TestClosureGuards(t *testing.T) {
	svc, _, _, qid := newThreadFixture(t)
	ctx := context.Background()

	if err := svc.GrantClosurePermission(ctx, qid, "USR-100", "Priya"); !errors.Is(err, ErrClosureNotRequested) {
		t.Errorf("grant without request: err = %v, want ErrClosureNotRequested", err)
	}
	if err := svc.RejectClosureRequest(ctx, qid, "USR-100", "Priya", ""); !errors.Is(err, ErrClosureNotRequested) {
		t.Errorf("reject without request: err = %v, want ErrClosureNotRequested", err)
	}
	if err := svc.CloseThread(ctx, qid, "adm-1", "Alex"); !errors.Is(err, ErrPermissionRequired) {
		t.Errorf("close without permission: err = %v, want ErrPermissionRequired", err)
	}

	if err := svc.RequestClosure(ctx, qid, "adm-1", "Alex", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.GrantClosurePermission(ctx, qid, "USR-100", "Priya"); err != nil {
		t.Fatal(err)
	}
	// No double-processing once granted.
	if err := svc.GrantClosurePermission(ctx, qid, "USR-100", "Priya"); !errors.Is(err, ErrClosureNotRequested) {
		t.Errorf("second grant: err = %v, want ErrClosureNotRequested", err)
	}
	if err := svc.RejectClosureRequest(ctx, qid, "USR-100", "Priya", ""); !errors.Is(err, ErrClosureNotRequested) {
		t.Errorf("reject after grant: err = %v, want ErrClosureNotRequested", err)
	}
}

func TestMessageReadFlags(t *testing.T) {
	svc, _, _, qid := newThreadFixture(t)
	ctx := context.Background()

	msgID, err := svc.CreateMessage(ctx, qid, "USR-100", "Priya", models.RoleUser, "Need 20L drums", "")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	messages, _ := svc.GetMessages(ctx, qid)
	if len(messages) != 1 {
		t.Fatalf("got %d messages", len(messages))
	}
	if !messages[0].IsReadByUser {
		t.Error("author's own message should start read for the author")
	}
	if messages[0].IsReadByAdmin {
		t.Error("message should start unread for the admin")
	}

	unread, _ := svc.GetUnreadMessageCount(ctx, qid, models.RoleAdmin)
	if unread != 1 {
		t.Errorf("admin unread count = %d, want 1", unread)
	}

	count, err := svc.MarkMessagesAsRead(ctx, qid, models.RoleAdmin, []primitive.ObjectID{msgID})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("marked %d messages, want 1", count)
	}

	messages, _ = svc.GetMessages(ctx, qid)
	if !messages[0].IsReadByAdmin {
		t.Error("IsReadByAdmin not flipped")
	}
	if !messages[0].IsReadByUser {
		t.Error("IsReadByUser must be untouched by the admin's mark")
	}

	unread, _ = svc.GetUnreadMessageCount(ctx, qid, models.RoleAdmin)
	if unread != 0 {
		t.Errorf("admin unread count after mark = %d, want 0", unread)
	}
}

func TestChatMessageNotifiesCounterpart(t *testing.T) {
	svc, _, notifier, qid := newThreadFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateMessage(ctx, qid, "USR-100", "Priya", models.RoleUser, "ping", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateMessage(ctx, qid, "adm-1", "Alex", models.RoleAdmin, "pong", ""); err != nil {
		t.Fatal(err)
	}

	if len(notifier.inputs) != 2 {
		t.Fatalf("dispatched %d notifications, want 2", len(notifier.inputs))
	}
	if notifier.inputs[0].RecipientType != models.RecipientAllAdmins {
		t.Errorf("user message recipient = %s, want all_admins", notifier.inputs[0].RecipientType)
	}
	if notifier.inputs[0].CreatedByType != models.RoleUser || notifier.inputs[1].CreatedByType != models.RoleAdmin {
		t.Errorf("performer types = %s/%s, want user/admin",
			notifier.inputs[0].CreatedByType, notifier.inputs[1].CreatedByType)
	}
	if notifier.inputs[1].RecipientType != models.RecipientSpecificUser {
		t.Errorf("admin message recipient = %s, want specific_user", notifier.inputs[1].RecipientType)
	}
	if notifier.inputs[1].RecipientID != "USR-100" {
		t.Errorf("admin message recipient id = %s, want the quotation's user", notifier.inputs[1].RecipientID)
	}
}

func TestSystemMessagesDoNotNotify(t *testing.T) {
	svc, _, notifier, qid := newThreadFixture(t)

	if err := svc.RequestClosure(context.Background(), qid, "adm-1", "Alex", ""); err != nil {
		t.Fatal(err)
	}
	if len(notifier.inputs) != 0 {
		t.Errorf("closure request dispatched %d notifications, want 0", len(notifier.inputs))
	}
}

func TestUnknownQuotation(t *testing.T) {
	svc := NewThreadService(newFakeQuotationRepo(), &fakeNotifier{})
	missing := primitive.NewObjectID()

	if _, err := svc.CreateMessage(context.Background(), missing, "u", "U", models.RoleUser, "hi", ""); !errors.Is(err, ErrQuotationNotFound) {
		t.Errorf("CreateMessage on missing quotation: err = %v, want ErrQuotationNotFound", err)
	}
	if err := svc.RequestClosure(context.Background(), missing, "a", "A", ""); !errors.Is(err, ErrQuotationNotFound) {
		t.Errorf("RequestClosure on missing quotation: err = %v, want ErrQuotationNotFound", err)
	}
}
