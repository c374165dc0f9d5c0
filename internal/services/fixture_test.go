package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/dbtest"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/directory"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/finalize"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/lock"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/metering"
	"github.com/vincentgggg12/docufen-admin-sub001/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	alice = domain.Principal{UserID: "alice", DisplayName: "Alice", Role: domain.RoleCreator, TenantID: "tenant-a"}
	bob   = domain.Principal{UserID: "bob", DisplayName: "Bob", Role: domain.RoleCollaborator, TenantID: "tenant-a"}
	carol = domain.Principal{UserID: "carol", DisplayName: "Carol", Role: domain.RoleCreator, TenantID: "tenant-a"}
	uma   = domain.Principal{UserID: "uma", DisplayName: "Uma", Role: domain.RoleUserManager, TenantID: "tenant-a"}
	sam   = domain.Principal{UserID: "sam", DisplayName: "Sam", Role: domain.RoleSiteAdmin, TenantID: "tenant-a"}
	dave  = domain.Principal{UserID: "dave", DisplayName: "Dave", Role: domain.RoleCollaborator, TenantID: "tenant-b", CompanyName: "Acme CRO"}
)

var finalizeCfg = config.FinalizationConfig{
	Workers:        1,
	QueueSize:      16,
	MaxAttempts:    2,
	BaseBackoff:    time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
	AttemptTimeout: time.Second,
}

type fixture struct {
	gdb     *gorm.DB
	svc     *DocumentService
	ledger  *audit.Ledger
	trigger *finalize.Trigger
	dir     *directory.Static
	meter   *metering.GormMeter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.SQLite(t)
	store := db.NewDocumentStore()
	ledger := audit.NewLedger(gdb, config.LedgerConfig{DefaultPageSize: 50, MaxPageSize: 500, VerifyBatchSize: 100}, zap.NewNop())
	locker := lock.NewMemoryLocker()
	meter := metering.NewGormMeter(gdb)
	renderer := finalize.RendererFunc(func(_ context.Context, req finalize.RenderRequest) (finalize.Artifact, error) {
		return finalize.Artifact{Ref: "blob://" + req.DocumentID, Pages: 3}, nil
	})
	trigger := finalize.NewTrigger(gdb, store, ledger, locker, renderer, meter, finalizeCfg, zap.NewNop())
	dir := directory.NewStatic(alice, bob, carol, uma, sam, dave)

	return &fixture{
		gdb:     gdb,
		svc:     NewDocumentService(gdb, store, ledger, locker, dir, trigger, meter, zap.NewNop(), metrics.NewMetricsCollector()),
		ledger:  ledger,
		trigger: trigger,
		dir:     dir,
		meter:   meter,
	}
}

// startWorkers runs the finalization workers until the test ends.
func (f *fixture) startWorkers(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.trigger.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) create(t *testing.T) *domain.Document {
	t.Helper()
	d, err := f.svc.CreateDocument(context.Background(), alice, "Batch record 42")
	require.NoError(t, err)
	return d
}

func (f *fixture) add(t *testing.T, docID string, g domain.Group, users ...domain.Principal) {
	t.Helper()
	for _, u := range users {
		_, err := f.svc.AddParticipant(context.Background(), docID, g, u.UserID, alice)
		require.NoError(t, err)
	}
}

func (f *fixture) sign(t *testing.T, docID string, g domain.Group, users ...domain.Principal) {
	t.Helper()
	for _, u := range users {
		_, err := f.svc.Sign(context.Background(), docID, g, u, SignRequest{Method: domain.VerifyRoleAttestation})
		require.NoError(t, err)
	}
}

func (f *fixture) forward(t *testing.T, docID string, target domain.Stage) TransitionResult {
	t.Helper()
	res, err := f.svc.RequestTransition(context.Background(), docID, alice, target, domain.Forward, "")
	require.NoError(t, err)
	return res
}

// advanceTo walks forward one stage at a time until target.
func (f *fixture) advanceTo(t *testing.T, docID string, target domain.Stage) TransitionResult {
	t.Helper()
	d, err := f.svc.GetDocument(context.Background(), docID, alice)
	require.NoError(t, err)
	var res TransitionResult
	for st := d.Stage; st != target; {
		next, ok := st.Next()
		require.True(t, ok, "no stage after %s", st)
		res = f.forward(t, docID, next)
		st = next
	}
	return res
}

func (f *fixture) load(t *testing.T, docID string) *domain.Document {
	t.Helper()
	d, err := f.svc.GetDocument(context.Background(), docID, alice)
	require.NoError(t, err)
	return d
}

func (f *fixture) entries(t *testing.T, docID string) []audit.Entry {
	t.Helper()
	res, err := f.ledger.Query(context.Background(), docID, audit.Filter{}, audit.Page{Limit: 500})
	require.NoError(t, err)
	return res.Entries
}

func (f *fixture) actions(t *testing.T, docID string) []string {
	t.Helper()
	var out []string
	for _, e := range f.entries(t, docID) {
		out = append(out, e.Action)
	}
	return out
}

func (f *fixture) lastAction(t *testing.T, docID string) string {
	t.Helper()
	a := f.actions(t, docID)
	require.NotEmpty(t, a)
	return a[len(a)-1]
}

func userIDs(ps []domain.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}
