package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/dto"
	"github.com/Karenfernandes20/integrai-sub001/internal/gateway"
	"github.com/Karenfernandes20/integrai-sub001/internal/notify"
	"github.com/Karenfernandes20/integrai-sub001/internal/repository"
)

type fixture struct {
	svc         ConnectionService
	instances   *repository.MemoryInstanceRepository
	tenants     *repository.MemoryTenantRepository
	gw          *gateway.MockPairingGateway
	broadcaster *notify.Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	instances := repository.NewMemoryInstanceRepository()
	tenants := repository.NewMemoryTenantRepository()
	gw := gateway.NewMockPairingGateway()
	broadcaster := notify.NewBroadcaster(nil)
	t.Cleanup(broadcaster.Close)

	tenant := &domain.TenantAccount{
		ID:   "tenant-1",
		Name: "Acme Corp",
		Slug: "acme",
		MaxInstances: map[domain.ChannelType]int{
			domain.ChannelPrimaryMessaging: 3,
			domain.ChannelPhotoSharing:     1,
		},
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := tenants.Create(context.Background(), tenant); err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	svc := NewConnectionService(instances, tenants, gw, broadcaster, nil,
		gateway.Endpoint{BaseURL: "http://gateway.internal", Secret: "default-secret"}, nil)
	return &fixture{svc: svc, instances: instances, tenants: tenants, gw: gw, broadcaster: broadcaster}
}

func (f *fixture) configure(t *testing.T, slot int) *domain.ChannelInstance {
	t.Helper()
	inst, err := f.svc.ConfigureInstance(context.Background(), "tenant-1", &dto.ConfigureInstanceRequest{
		ChannelType: string(domain.ChannelPrimaryMessaging),
		SlotIndex:   slot,
		DisplayName: "Support Line",
		Credential:  "api-token",
	})
	if err != nil {
		t.Fatalf("ConfigureInstance failed: %v", err)
	}
	return inst
}

func drain(ch <-chan domain.StatusChange) []domain.StatusChange {
	var out []domain.StatusChange
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

// --- Registry ---

func TestConfigureInstance_MintsKey(t *testing.T) {
	f := newFixture(t)

	inst := f.configure(t, 0)
	if inst.InstanceKey == "" {
		t.Error("configure should mint an instance key")
	}
	if inst.Status != domain.StatusDisconnected {
		t.Errorf("fresh instance status = %s, want disconnected", inst.Status)
	}
	if !inst.IsConfigured() {
		t.Error("instance should be configured")
	}
}

func TestConfigureInstance_ReconfigureKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.configure(t, 0)
	second, err := f.svc.ConfigureInstance(ctx, "tenant-1", &dto.ConfigureInstanceRequest{
		ChannelType: string(domain.ChannelPrimaryMessaging),
		SlotIndex:   0,
		DisplayName: "Renamed Line",
		Credential:  "rotated-token",
	})
	if err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}

	if second.ID != first.ID {
		t.Error("reconfiguring a slot should keep the instance ID")
	}
	if second.InstanceKey != first.InstanceKey {
		t.Error("reconfiguring a slot should keep the instance key")
	}
	if second.DisplayName != "Renamed Line" {
		t.Errorf("DisplayName = %s, want Renamed Line", second.DisplayName)
	}
}

func TestConfigureInstance_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfigureInstance(context.Background(), "tenant-1", &dto.ConfigureInstanceRequest{
		ChannelType: "email",
		SlotIndex:   -1,
		DisplayName: "",
		Credential:  "",
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	for _, field := range []string{"channel_type", "slot_index", "display_name", "credential"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing validation problem for %s", field)
		}
	}
}

func TestConfigureInstance_SlotOutOfRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfigureInstance(context.Background(), "tenant-1", &dto.ConfigureInstanceRequest{
		ChannelType: string(domain.ChannelPhotoSharing),
		SlotIndex:   1, // plan allows a single photo-sharing slot
		DisplayName: "Second",
		Credential:  "token",
	})
	if !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("err = %v, want ErrSlotOutOfRange", err)
	}
}

func TestConfigureInstance_KeyConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tenant2 := &domain.TenantAccount{
		ID:           "tenant-2",
		Name:         "Rival Inc",
		Slug:         "rival",
		MaxInstances: map[domain.ChannelType]int{domain.ChannelPrimaryMessaging: 1},
		IsActive:     true,
	}
	if err := f.tenants.Create(ctx, tenant2); err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	_, err := f.svc.ConfigureInstance(ctx, "tenant-1", &dto.ConfigureInstanceRequest{
		ChannelType: string(domain.ChannelPrimaryMessaging),
		SlotIndex:   0,
		DisplayName: "First",
		Credential:  "token",
		InstanceKey: "contested-key",
	})
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	_, err = f.svc.ConfigureInstance(ctx, "tenant-2", &dto.ConfigureInstanceRequest{
		ChannelType: string(domain.ChannelPrimaryMessaging),
		SlotIndex:   0,
		DisplayName: "Second",
		Credential:  "token",
		InstanceKey: "contested-key",
	})
	if !errors.Is(err, ErrInstanceKeyTaken) {
		t.Errorf("second claim err = %v, want ErrInstanceKeyTaken", err)
	}
}

func TestListInstances_FillsPlaceholders(t *testing.T) {
	f := newFixture(t)

	f.configure(t, 1)

	list, err := f.svc.ListInstances(context.Background(), "tenant-1", domain.ChannelPrimaryMessaging)
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want the plan's 3 slots", len(list))
	}
	if list[0].IsConfigured() || list[2].IsConfigured() {
		t.Error("slots 0 and 2 should be unconfigured placeholders")
	}
	if list[0].Status != domain.StatusUnconfigured {
		t.Errorf("placeholder status = %s, want unconfigured", list[0].Status)
	}
	if !list[1].IsConfigured() {
		t.Error("slot 1 should hold the configured instance")
	}
}

func TestListInstances_UnknownTenant(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListInstances(context.Background(), "ghost", domain.ChannelPrimaryMessaging)
	if !errors.Is(err, ErrTenantNotFound) {
		t.Errorf("err = %v, want ErrTenantNotFound", err)
	}
}

func TestDeleteInstance_FreesSlotAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	events, _ := f.broadcaster.Subscribe(ctx, "tenant-1")

	if err := f.svc.DeleteInstance(ctx, "tenant-1", inst.ID); err != nil {
		t.Fatalf("DeleteInstance failed: %v", err)
	}

	got := drain(events)
	if len(got) != 1 || got[0].Status != domain.StatusUnconfigured {
		t.Errorf("events = %+v, want one unconfigured change", got)
	}

	list, _ := f.svc.ListInstances(ctx, "tenant-1", domain.ChannelPrimaryMessaging)
	if list[0].IsConfigured() {
		t.Error("slot should be free after delete")
	}
}

func TestDeleteInstance_ReleasesKeyState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	if _, err := f.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, domain.StatusConnected, "", domain.SourcePush)); err != nil {
		t.Fatalf("ApplyObservation failed: %v", err)
	}

	impl := f.svc.(*connectionService)
	impl.mu.Lock()
	_, locked := impl.keyLocks[inst.InstanceKey]
	impl.mu.Unlock()
	if !locked {
		t.Fatal("reconciliation should have created a key lock")
	}

	if err := f.svc.DeleteInstance(ctx, "tenant-1", inst.ID); err != nil {
		t.Fatalf("DeleteInstance failed: %v", err)
	}

	impl.mu.Lock()
	_, locked = impl.keyLocks[inst.InstanceKey]
	inFlight := impl.inFlight[inst.InstanceKey]
	impl.mu.Unlock()
	if locked || inFlight {
		t.Error("per-key state should be dropped when the instance is deleted")
	}
}

// --- Pairing lifecycle ---

func TestRequestPairing_ReturnsChallengeAndSetsPairing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	challenge, err := f.svc.RequestPairing(ctx, "tenant-1", inst.ID)
	if err != nil {
		t.Fatalf("RequestPairing failed: %v", err)
	}
	if challenge.Payload == "" {
		t.Error("challenge payload should not be empty")
	}

	got, _ := f.svc.GetStatus(ctx, "tenant-1", inst.ID)
	if got.Status != domain.StatusPairing {
		t.Errorf("status = %s, want pairing", got.Status)
	}
}

func TestRequestPairing_Unconfigured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestPairing(ctx, "tenant-1", "no-such-instance")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("err = %v, want ErrInstanceNotFound", err)
	}
}

func TestRequestPairing_NoCredentialSkipsGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A slot saved without a credential yet, as tenant configuration flows
	// can leave it
	now := time.Now()
	inst := &domain.ChannelInstance{
		ID:              "inst-bare",
		TenantID:        "tenant-1",
		ChannelType:     domain.ChannelPrimaryMessaging,
		SlotIndex:       0,
		DisplayName:     "Support Line",
		InstanceKey:     "bare-key",
		Status:          domain.StatusDisconnected,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := f.instances.Upsert(ctx, inst); err != nil {
		t.Fatalf("failed to seed instance: %v", err)
	}

	_, err := f.svc.RequestPairing(ctx, "tenant-1", inst.ID)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if f.gw.StartPairingCalls != 0 {
		t.Errorf("StartPairingCalls = %d, the gateway must not be contacted without a credential", f.gw.StartPairingCalls)
	}
}

func TestRequestPairing_RejectedCredentialMarksError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	f.gw.StartPairingErr = gateway.ErrGatewayRejected

	_, err := f.svc.RequestPairing(ctx, "tenant-1", inst.ID)
	if !errors.Is(err, gateway.ErrGatewayRejected) {
		t.Fatalf("err = %v, want ErrGatewayRejected", err)
	}

	got, _ := f.svc.GetStatus(ctx, "tenant-1", inst.ID)
	if got.Status != domain.StatusError {
		t.Errorf("status = %s, want error after rejection", got.Status)
	}
}

func TestRequestPairing_UnavailableLeavesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	f.gw.StartPairingErr = gateway.ErrGatewayUnavailable

	_, err := f.svc.RequestPairing(ctx, "tenant-1", inst.ID)
	if !errors.Is(err, gateway.ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}

	got, _ := f.svc.GetStatus(ctx, "tenant-1", inst.ID)
	if got.Status != domain.StatusDisconnected {
		t.Errorf("status = %s, a transient gateway outage must not change it", got.Status)
	}
}

func TestRequestPairing_RetryFromError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	f.gw.StartPairingErr = gateway.ErrGatewayRejected
	f.svc.RequestPairing(ctx, "tenant-1", inst.ID)

	// The credential problem is fixed; pairing must restart from error
	f.gw.StartPairingErr = nil
	if _, err := f.svc.RequestPairing(ctx, "tenant-1", inst.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	got, _ := f.svc.GetStatus(ctx, "tenant-1", inst.ID)
	if got.Status != domain.StatusPairing {
		t.Errorf("status = %s, want pairing after retry", got.Status)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	f.svc.RequestPairing(ctx, "tenant-1", inst.ID)
	f.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, domain.StatusConnected, "+15550001111", domain.SourcePush))

	if err := f.svc.Disconnect(ctx, "tenant-1", inst.ID); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	got, _ := f.svc.GetStatus(ctx, "tenant-1", inst.ID)
	if got.Status != domain.StatusDisconnected {
		t.Errorf("status = %s, want disconnected", got.Status)
	}

	calls := f.gw.DisconnectCalls
	if err := f.svc.Disconnect(ctx, "tenant-1", inst.ID); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
	if f.gw.DisconnectCalls != calls {
		t.Error("disconnecting an already disconnected instance should not call the gateway")
	}
}

// --- Reconciliation ---

func TestApplyObservation_AdvancesAndFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	f.svc.RequestPairing(ctx, "tenant-1", inst.ID)
	events, _ := f.broadcaster.Subscribe(ctx, "tenant-1")

	for _, status := range []domain.InstanceStatus{domain.StatusScanning, domain.StatusConnected} {
		changed, err := f.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, status, "", domain.SourcePoll))
		if err != nil {
			t.Fatalf("ApplyObservation(%s) failed: %v", status, err)
		}
		if !changed {
			t.Errorf("ApplyObservation(%s) should report a change", status)
		}
	}

	got := drain(events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Status != domain.StatusScanning || got[1].Status != domain.StatusConnected {
		t.Errorf("event order = %s, %s", got[0].Status, got[1].Status)
	}
}

func TestApplyObservation_StaleReportDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	f.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, domain.StatusConnected, "+15550001111", domain.SourcePush))
	events, _ := f.broadcaster.Subscribe(ctx, "tenant-1")

	// A delayed scanning report from the pairing window arrives after connected
	changed, err := f.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, domain.StatusScanning, "", domain.SourcePoll))
	if err != nil {
		t.Fatalf("ApplyObservation failed: %v", err)
	}
	if changed {
		t.Error("stale report should not change state")
	}
	if got := drain(events); len(got) != 0 {
		t.Errorf("stale report fanned out %d events", len(got))
	}

	st, _ := f.svc.GetStatus(ctx, "tenant-1", inst.ID)
	if st.Status != domain.StatusConnected {
		t.Errorf("status regressed to %s", st.Status)
	}
}

func TestApplyObservation_DuplicatePushIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	events, _ := f.broadcaster.Subscribe(ctx, "tenant-1")

	obs := domain.NewObservation(inst.InstanceKey, domain.StatusConnected, "+15550001111", domain.SourcePush)
	f.svc.ApplyObservation(ctx, obs)
	changed, _ := f.svc.ApplyObservation(ctx, obs)
	if changed {
		t.Error("redelivered push should not report a change")
	}

	if got := drain(events); len(got) != 1 {
		t.Errorf("got %d events, want exactly 1 despite redelivery", len(got))
	}
}

func TestApplyObservation_UnknownStatusIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.configure(t, 0)
	changed, err := f.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, domain.StatusUnknown, "", domain.SourcePoll))
	if err != nil {
		t.Fatalf("ApplyObservation failed: %v", err)
	}
	if changed {
		t.Error("unknown status should be dropped")
	}
}

func TestApplyObservation_DeletedInstanceIgnored(t *testing.T) {
	f := newFixture(t)

	changed, err := f.svc.ApplyObservation(context.Background(),
		domain.NewObservation("ghost-key", domain.StatusConnected, "", domain.SourcePush))
	if err != nil {
		t.Fatalf("ApplyObservation failed: %v", err)
	}
	if changed {
		t.Error("report about an unknown instance should be dropped")
	}
}

func TestTenantEndpoint_OverridesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ep, err := f.svc.TenantEndpoint(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("TenantEndpoint failed: %v", err)
	}
	if ep.BaseURL != "http://gateway.internal" || ep.Secret != "default-secret" {
		t.Errorf("endpoint = %+v, want platform defaults", ep)
	}

	tenant, _ := f.tenants.GetByID(ctx, "tenant-1")
	tenant.GatewayBaseURL = "https://dedicated.gateway.example"
	tenant.GatewaySecret = "tenant-secret"
	if err := f.tenants.Update(ctx, tenant); err != nil {
		t.Fatalf("tenant update failed: %v", err)
	}

	ep, _ = f.svc.TenantEndpoint(ctx, "tenant-1")
	if ep.BaseURL != "https://dedicated.gateway.example" || ep.Secret != "tenant-secret" {
		t.Errorf("endpoint = %+v, want tenant overrides", ep)
	}
}
