package sync

import (
	"context"
	"sort"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/shopspring/decimal"

	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/store"
)

// fakeMailbox serves prepared messages. Every search returns all UIDs
// unless its rendered filter contains a key of failOn.
type fakeMailbox struct {
	mu       gosync.Mutex
	byUID    map[imap.UID]*mail.Message
	bySeq    map[uint32]*mail.Message
	badUIDs  map[imap.UID]bool
	failOn   map[string]error
	searches []string
	ranges   [][2]uint32
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		byUID:   make(map[imap.UID]*mail.Message),
		bySeq:   make(map[uint32]*mail.Message),
		badUIDs: make(map[imap.UID]bool),
		failOn:  make(map[string]error),
	}
}

func (f *fakeMailbox) add(uid imap.UID, seq uint32, msg *mail.Message) {
	msg.UID, msg.SeqNum = uid, seq
	f.byUID[uid] = msg
	f.bySeq[seq] = msg
}

func (f *fakeMailbox) Search(_ context.Context, criteria []mail.Criterion) ([]imap.UID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rendered := mail.FormatCriteria(criteria)
	f.searches = append(f.searches, rendered)
	for key, err := range f.failOn {
		if strings.Contains(rendered, key) {
			return nil, err
		}
	}

	uids := make([]imap.UID, 0, len(f.byUID)+len(f.badUIDs))
	for uid := range f.byUID {
		uids = append(uids, uid)
	}
	for uid := range f.badUIDs {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (f *fakeMailbox) FetchUIDs(_ context.Context, uids []imap.UID, fn mail.FetchFunc) error {
	for _, uid := range uids {
		if f.badUIDs[uid] {
			fn(nil, &mail.ParseError{Reason: "missing sender"})
			continue
		}
		if msg, ok := f.byUID[uid]; ok {
			cp := *msg
			fn(&cp, nil)
		}
	}
	return nil
}

func (f *fakeMailbox) FetchRange(_ context.Context, from, to uint32, fn mail.FetchFunc) error {
	f.mu.Lock()
	f.ranges = append(f.ranges, [2]uint32{from, to})
	f.mu.Unlock()

	for seq := from; seq <= to; seq++ {
		if msg, ok := f.bySeq[seq]; ok {
			cp := *msg
			fn(&cp, nil)
		}
	}
	return nil
}

func (f *fakeMailbox) searchLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

const (
	pnbAddress  = "pnbealert@punjabnationalbank.in"
	axisAddress = "alerts@axisbank.com"
	sbiAddress  = "alerts@sbibank.com"
)

func pnbAlert(date time.Time, body string) *mail.Message {
	return &mail.Message{
		MessageID: date.Format(time.RFC3339) + "@pnb",
		From:      pnbAddress,
		Subject:   "Transaction alert",
		Date:      date,
		TextBody:  body,
	}
}

func axisAlert(date time.Time, body string) *mail.Message {
	return &mail.Message{
		MessageID: date.Format(time.RFC3339) + "@axis",
		From:      axisAddress,
		Subject:   "Debit transaction alert",
		Date:      date,
		TextBody:  body,
	}
}

func day(d int) time.Time {
	return time.Date(2023, 1, d, 10, 0, 0, 0, time.UTC)
}

// seedLoan creates a loan account at the SBI institution.
func seedLoan(t *testing.T, s store.Store, number, searchText, balance string) *model.Account {
	t.Helper()
	ctx := context.Background()

	inst, err := s.GetInstitutionByAddress(ctx, sbiAddress)
	if err != nil {
		inst = &model.Institution{Name: "SBI", AlertAddress: sbiAddress}
		if err := s.CreateInstitution(ctx, inst); err != nil {
			t.Fatal(err)
		}
	}
	acct := &model.Account{
		Name:          "Home loan",
		Number:        number,
		Type:          model.AccountTypeLoan,
		Balance:       decimal.RequireFromString(balance),
		InstitutionID: inst.ID,
		Institution:   *inst,
		SearchText:    searchText,
		StartDate:     time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatal(err)
	}
	return acct
}

func balanceOf(t *testing.T, s store.Store, id string) decimal.Decimal {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance
}
