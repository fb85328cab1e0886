package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var escalationNow = time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)

func newTestHook(t *testing.T, creator FollowUpCreator) *EscalationHook {
	t.Helper()
	hook := NewEscalationHook(creator, time.Second)
	t.Cleanup(hook.Close)
	return hook
}

func TestEscalationCreatesOneFollowUp(t *testing.T) {
	engine, store, _ := newTestEngine(t, escalationNow)
	hook := newTestHook(t, engine)

	bound, err := hook.Bind(models.RecordTypeElderly)
	require.NoError(t, err)

	doc := models.DomainRecord{
		"_id":        "rec-1",
		"name":       "Ramesh Kumar",
		"wardNo":     "12",
		"habitation": "River Side",
		"tags":       []interface{}{"pension", "bpl"},
	}
	trigger := bound.NewTrigger()
	assert.True(t, trigger.Fire(doc, "user-9"))
	assert.False(t, trigger.Fire(doc, "user-9"), "trigger fires at most once")
	hook.Wait()

	ctx := context.Background()
	rec, err := store.FindLatestByRecord(ctx, models.RecordTypeElderly, "rec-1")
	require.NoError(t, err)

	assert.Equal(t, models.ModuleHealth, rec.Module)
	assert.Equal(t, "Ramesh Kumar", rec.RecordName)
	assert.Equal(t, "Ramesh Kumar 月度跟进", rec.Title)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, models.PriorityMedium, rec.Priority)
	assert.Equal(t, "user-9", rec.AssignedTo)
	assert.Equal(t, "user-9", rec.CreatedBy)
	assert.Equal(t, "12", rec.WardNo)
	assert.Equal(t, "River Side", rec.Habitation)
	assert.Equal(t, []string{"pension", "bpl"}, rec.Tags)
	assert.Equal(t, time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC), rec.FollowUpDate)
	assert.True(t, rec.IsActive)

	n, err := store.Count(ctx, models.FollowUpFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	dispatched, failed := hook.Stats()
	assert.Equal(t, int64(1), dispatched)
	assert.Zero(t, failed)
}

func TestEscalationUsesSnapshotOfRecord(t *testing.T) {
	creator := &recordingCreator{}
	hook := newTestHook(t, creator)
	bound, err := hook.Bind(models.RecordTypeElderly)
	require.NoError(t, err)

	doc := models.DomainRecord{"_id": "rec-2", "name": "Sita", "tags": []interface{}{"pension"}}
	require.True(t, bound.NewTrigger().Fire(doc, "user-1"))

	// 响应之后处理器修改了文档
	doc["tags"].([]interface{})[0] = "edited"
	doc["name"] = "edited"
	hook.Wait()

	input := creator.lastInput()
	assert.Equal(t, "Sita", input.RecordName)
	assert.Equal(t, []string{"pension"}, input.Tags)
}

func TestEscalationEachTriggerIsIndependent(t *testing.T) {
	engine, store, _ := newTestEngine(t, escalationNow)
	hook := newTestHook(t, engine)
	bound, err := hook.Bind(models.RecordTypeSchools)
	require.NoError(t, err)

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		bound.NewTrigger().Fire(models.DomainRecord{"_id": id, "schoolName": "GHS " + id}, "user-1")
	}
	hook.Wait()

	n, err := store.Count(context.Background(), models.FollowUpFilter{Module: models.ModuleEducation})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestEscalationFailureIsSwallowed(t *testing.T) {
	engine, store, _ := newTestEngine(t, escalationNow)
	store.FailWith = utils.CreateDependencyUnavailableError(errors.New("connection refused"))
	hook := NewEscalationHook(engine, time.Second)

	bound, err := hook.Bind(models.RecordTypeLegalAid)
	require.NoError(t, err)
	assert.True(t, bound.NewTrigger().Fire(models.DomainRecord{"_id": "la-1", "clientName": "Meena"}, "user-1"))

	hook.Close()

	dispatched, failed := hook.Stats()
	assert.Equal(t, int64(1), dispatched)
	assert.Equal(t, int64(1), failed)

	store.FailWith = nil
	n, err := store.Count(context.Background(), models.FollowUpFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEscalationMissingRecordIDFails(t *testing.T) {
	engine, store, _ := newTestEngine(t, escalationNow)
	hook := NewEscalationHook(engine, time.Second)
	bound, err := hook.Bind(models.RecordTypeElderly)
	require.NoError(t, err)

	bound.NewTrigger().Fire(models.DomainRecord{"name": "No Id"}, "user-1")
	hook.Close()

	_, failed := hook.Stats()
	assert.Equal(t, int64(1), failed)
	n, _ := store.Count(context.Background(), models.FollowUpFilter{})
	assert.Zero(t, n)
}

// recordingCreator 记录收到的输入
type recordingCreator struct {
	mu    sync.Mutex
	input models.CreateFollowUpInput
}

func (r *recordingCreator) Create(ctx context.Context, input models.CreateFollowUpInput) (*models.FollowUpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = input
	return &models.FollowUpRecord{RecordID: input.RecordID}, nil
}

func (r *recordingCreator) lastInput() models.CreateFollowUpInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.input
}

func (r *recordingCreator) Now() time.Time     { return escalationNow }
func (r *recordingCreator) Interval() Interval { return testInterval() }

// blockingCreator 一直阻塞到 ctx 结束
type blockingCreator struct {
	mu    sync.Mutex
	calls int
}

func (b *blockingCreator) Create(ctx context.Context, input models.CreateFollowUpInput) (*models.FollowUpRecord, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingCreator) Now() time.Time     { return escalationNow }
func (b *blockingCreator) Interval() Interval { return testInterval() }

func TestEscalationTimeout(t *testing.T) {
	creator := &blockingCreator{}
	hook := NewEscalationHook(creator, 50*time.Millisecond)
	bound, err := hook.Bind(models.RecordTypeChildren)
	require.NoError(t, err)

	start := time.Now()
	bound.NewTrigger().Fire(models.DomainRecord{"_id": "c-1"}, "user-1")
	hook.Close()

	assert.Less(t, time.Since(start), 2*time.Second)
	_, failed := hook.Stats()
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, 1, creator.calls)
}

func TestFireAfterCloseIsIgnored(t *testing.T) {
	engine, store, _ := newTestEngine(t, escalationNow)
	hook := NewEscalationHook(engine, time.Second)
	bound, err := hook.Bind(models.RecordTypeElderly)
	require.NoError(t, err)

	hook.Close()
	hook.Close()

	assert.False(t, bound.NewTrigger().Fire(models.DomainRecord{"_id": "e-1"}, "user-1"))
	n, _ := store.Count(context.Background(), models.FollowUpFilter{})
	assert.Zero(t, n)
}

func TestBindRejectsUnknownType(t *testing.T) {
	engine, _, _ := newTestEngine(t, escalationNow)
	hook := newTestHook(t, engine)

	_, err := hook.Bind("Spaceships")
	assert.Error(t, err)

	_, err = hook.BindAll([]models.RecordType{models.RecordTypeElderly, "Spaceships"})
	assert.Error(t, err)

	bound, err := hook.BindAll(models.AllRecordTypes())
	require.NoError(t, err)
	assert.Len(t, bound, 22)
	for rt, b := range bound {
		assert.Equal(t, rt, b.RecordType())
	}
}

func TestEveryRecordTypeHasNamingRule(t *testing.T) {
	types := models.AllRecordTypes()
	assert.Len(t, types, 22)
	for _, rt := range types {
		rule, ok := NamingRuleFor(rt)
		require.True(t, ok, rt)
		assert.NotEmpty(t, rule(models.DomainRecord{"_id": "0123456789"}), rt)
	}
	assert.Len(t, namingRules, len(types))
}

func TestNamingRules(t *testing.T) {
	cases := []struct {
		name string
		rt   models.RecordType
		doc  models.DomainRecord
		want string
	}{
		{"primary field", models.RecordTypeElderly, models.DomainRecord{"_id": "abc", "name": "Savitri"}, "Savitri"},
		{"secondary field", models.RecordTypeElderly, models.DomainRecord{"_id": "abc", "fullName": "Savitri Bai"}, "Savitri Bai"},
		{"code fallback", models.RecordTypeElderly, models.DomainRecord{"_id": "64f0aa11bb22cc33", "elderlyId": "EL-77"}, "Elderly EL-77 (22cc33)"},
		{"id fallback", models.RecordTypeTBPatients, models.DomainRecord{"_id": "64f0aa11bb22cc33"}, "TB Patient #22cc33"},
		{"training batch", models.RecordTypeVocationalTraining, models.DomainRecord{"_id": "x", "courseName": "Tailoring"}, "Tailoring"},
		{"domestic violence ignores names", models.RecordTypeDomesticViolence,
			models.DomainRecord{"_id": "64f0aa11bb22cc33", "name": "Victim Name", "caseNumber": "DV/2025/14"}, "DV Case DV/2025/14 (22cc33)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := NamingRuleFor(tc.rt)
			require.True(t, ok)
			assert.Equal(t, tc.want, rule(tc.doc))
		})
	}
}

func TestBuildInputUsesConfiguredInterval(t *testing.T) {
	engine := NewLifecycleEngine(repository.NewMemoryFollowUpStore(), WithClock(func() time.Time { return escalationNow }),
		WithInterval(Interval{Days: 14, DueHour: 10, Location: time.UTC}))
	hook := newTestHook(t, engine)
	bound, err := hook.Bind(models.RecordTypeRationCards)
	require.NoError(t, err)

	input, err := bound.BuildInput(models.DomainRecord{"_id": "rc-1", "headOfFamily": "Anil"}, "user-5", escalationNow)
	require.NoError(t, err)
	assert.Equal(t, models.ModuleSocialJustice, input.Module)
	assert.Equal(t, "Anil", input.RecordName)
	assert.Equal(t, time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC), input.FollowUpDate)

	_, err = bound.BuildInput(models.DomainRecord{"headOfFamily": "Anil"}, "user-5", escalationNow)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
