package lens

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/devblac/state-lens/internal/decoder"
	"github.com/devblac/state-lens/internal/diff"
	"github.com/devblac/state-lens/internal/network"
	"github.com/devblac/state-lens/internal/rpc"
	"github.com/devblac/state-lens/internal/sink"
	"github.com/devblac/state-lens/internal/storage"
)

type fakeSource struct {
	entries map[string]rpc.LedgerEntry
	sim     *rpc.SimulateResponse
	err     error
	calls   [][]string
}

func (f *fakeSource) GetLedgerEntries(ctx context.Context, keys []string) (*rpc.LedgerEntriesResponse, error) {
	f.calls = append(f.calls, keys)
	if f.err != nil {
		return nil, f.err
	}
	resp := &rpc.LedgerEntriesResponse{LatestLedger: 500}
	for _, k := range keys {
		if e, ok := f.entries[k]; ok {
			e.Key = k
			resp.Entries = append(resp.Entries, e)
		}
	}
	return resp, nil
}

func (f *fakeSource) SimulateTransaction(ctx context.Context, txXDR string) (*rpc.SimulateResponse, error) {
	return f.sim, f.err
}

func be32(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func scvBytes(t *testing.T, v xdr.ScVal) []byte {
	t.Helper()
	b, err := v.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal scval: %v", err)
	}
	return b
}

func u32(n uint32) xdr.ScVal {
	u := xdr.Uint32(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

func sym(s string) xdr.ScVal {
	v := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &v}
}

var instanceKeyVal = xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance}

// contractDataEntry encodes LedgerEntryData{ContractData} by hand so the
// contract address arm does not depend on SDK type names.
func contractDataEntry(t *testing.T, hash []byte, key, val xdr.ScVal, durability uint32) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(be32(6)) // CONTRACT_DATA
	buf.Write(be32(0)) // ext
	buf.Write(be32(1)) // SC_ADDRESS_TYPE_CONTRACT
	buf.Write(hash)
	buf.Write(scvBytes(t, key))
	buf.Write(be32(durability))
	buf.Write(scvBytes(t, val))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func contractDataKey(t *testing.T, hash []byte, key xdr.ScVal, durability uint32) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(be32(6))
	buf.Write(be32(1))
	buf.Write(hash)
	buf.Write(scvBytes(t, key))
	buf.Write(be32(durability))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type fixture struct {
	id          string
	hash        []byte
	instanceKey string
	counterKey  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	hash := bytes.Repeat([]byte{7}, 32)
	id, err := strkey.Encode(strkey.VersionByteContract, hash)
	if err != nil {
		t.Fatalf("encode id: %v", err)
	}
	instanceKey, err := network.ContractInstanceKey(id)
	if err != nil {
		t.Fatalf("instance key: %v", err)
	}
	return fixture{
		id:          id,
		hash:        hash,
		instanceKey: instanceKey,
		counterKey:  contractDataKey(t, hash, sym("counter"), 1),
	}
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(t.TempDir() + "/db.sqlite")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestWorker(t *testing.T) *decoder.Worker {
	t.Helper()
	w, err := decoder.NewWorker(decoder.Options{Workers: 2, CacheSize: 32})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func byLedgerKey(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.LedgerKey] = e
	}
	return out
}

func TestInspectTracksChanges(t *testing.T) {
	fx := newFixture(t)
	live := uint32(900)
	src := &fakeSource{entries: map[string]rpc.LedgerEntry{
		fx.instanceKey: {XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(5), 1), LastModifiedLedgerSeq: 10, LiveUntilLedgerSeq: &live},
		fx.counterKey:  {XDR: contractDataEntry(t, fx.hash, sym("counter"), sym("idle"), 1), LastModifiedLedgerSeq: 11},
	}}
	store := newTestStore(t)
	ex, err := NewExplorer(src, newTestWorker(t), store, nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	ex.nowFunc = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := ex.Inspect(ctx, "  "+fx.id+" ", fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if first.ContractID != fx.id || first.LatestLedger != 500 {
		t.Fatalf("unexpected inspection header: %+v", first)
	}
	got := byLedgerKey(first.Entries)
	inst, counter := got[fx.instanceKey], got[fx.counterKey]
	if inst.Status != diff.Added || counter.Status != diff.Added {
		t.Fatalf("first pass should add everything: %+v", first.Entries)
	}
	if inst.Durability != storage.DurabilityInstance || inst.Value != float64(5) || inst.EntryKey != nil {
		t.Fatalf("instance entry = %+v", inst)
	}
	if inst.LiveUntilLedger == nil || *inst.LiveUntilLedger != 900 || inst.LastModifiedLedger != 10 {
		t.Fatalf("instance ledgers = %+v", inst)
	}
	if counter.Durability != storage.DurabilityPersistent || counter.EntryKey != "counter" || counter.Value != "idle" {
		t.Fatalf("counter entry = %+v", counter)
	}
	if counter.ContractID != fx.id || counter.Type != storage.EntryContractData {
		t.Fatalf("counter owner = %+v", counter)
	}

	rec, ok, err := store.GetLedgerEntry(ctx, inst.Key)
	if err != nil || !ok {
		t.Fatalf("instance not cached: ok=%v err=%v", ok, err)
	}
	if rec.ValueJSON != "5" || rec.UpdatedAt.Year() != 2024 {
		t.Fatalf("cached record = %+v", rec)
	}

	src.entries[fx.instanceKey] = rpc.LedgerEntry{XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(6), 1), LastModifiedLedgerSeq: 12}
	second, err := ex.Inspect(ctx, fx.id, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	got = byLedgerKey(second.Entries)
	if got[fx.instanceKey].Status != diff.Changed {
		t.Fatalf("instance status = %s, want changed", got[fx.instanceKey].Status)
	}
	if got[fx.counterKey].Status != diff.Unchanged {
		t.Fatalf("counter status = %s, want unchanged", got[fx.counterKey].Status)
	}

	delete(src.entries, fx.counterKey)
	third, err := ex.Inspect(ctx, fx.id, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	got = byLedgerKey(third.Entries)
	if got[fx.counterKey].Status != diff.Removed || got[fx.counterKey].Value != nil {
		t.Fatalf("counter after expiry = %+v", got[fx.counterKey])
	}

	cached, err := ex.Cached(ctx, fx.id)
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if len(cached) != 1 || cached[0].LedgerKey != fx.instanceKey || cached[0].Value != float64(6) {
		t.Fatalf("cache after removal = %+v", cached)
	}

	fourth, err := ex.Inspect(ctx, fx.id, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(fourth.Entries) != 1 || fourth.Entries[0].Status != diff.Unchanged {
		t.Fatalf("removed entry should not be reported twice: %+v", fourth.Entries)
	}
}

func TestInspectDedupesRequestedKeys(t *testing.T) {
	fx := newFixture(t)
	src := &fakeSource{entries: map[string]rpc.LedgerEntry{}}
	ex, err := NewExplorer(src, newTestWorker(t), nil, nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	res, err := ex.Inspect(context.Background(), fx.id, fx.instanceKey, "", fx.counterKey, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Fatalf("nothing on ledger and nothing cached, got %+v", res.Entries)
	}
	if len(src.calls) != 1 || len(src.calls[0]) != 2 {
		t.Fatalf("requested keys = %v", src.calls)
	}
}

func TestInspectWithoutStoreAlwaysAdds(t *testing.T) {
	fx := newFixture(t)
	src := &fakeSource{entries: map[string]rpc.LedgerEntry{
		fx.instanceKey: {XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(1), 1)},
	}}
	ex, err := NewExplorer(src, newTestWorker(t), nil, nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := ex.Inspect(context.Background(), fx.id)
		if err != nil {
			t.Fatalf("inspect: %v", err)
		}
		if len(res.Entries) != 1 || res.Entries[0].Status != diff.Added {
			t.Fatalf("pass %d: %+v", i, res.Entries)
		}
	}
	cached, err := ex.Cached(context.Background(), fx.id)
	if err != nil || len(cached) != 0 {
		t.Fatalf("cached without store = %v, %v", cached, err)
	}
}

func TestInspectErrors(t *testing.T) {
	fx := newFixture(t)
	w := newTestWorker(t)

	ex, _ := NewExplorer(&fakeSource{}, w, nil, nil)
	if _, err := ex.Inspect(context.Background(), "not-a-contract"); !errors.Is(err, network.ErrInvalidContractID) {
		t.Fatalf("expected invalid contract id, got %v", err)
	}
	if _, err := ex.Inspect(context.Background(), " "); !errors.Is(err, network.ErrEmptyContractID) {
		t.Fatalf("expected empty contract id, got %v", err)
	}

	boom := errors.New("boom")
	ex, _ = NewExplorer(&fakeSource{err: boom}, w, nil, nil)
	if _, err := ex.Inspect(context.Background(), fx.id); !errors.Is(err, boom) {
		t.Fatalf("expected rpc error to wrap, got %v", err)
	}

	bad := &fakeSource{entries: map[string]rpc.LedgerEntry{fx.instanceKey: {XDR: "!!"}}}
	ex, _ = NewExplorer(bad, w, nil, nil)
	if _, err := ex.Inspect(context.Background(), fx.id); err == nil {
		t.Fatalf("expected decode error for garbage entry xdr")
	}

	if _, err := NewExplorer(nil, w, nil, nil); err == nil {
		t.Fatalf("expected error without source")
	}
}

func TestInspectFootprint(t *testing.T) {
	fx := newFixture(t)
	src := &fakeSource{
		entries: map[string]rpc.LedgerEntry{
			fx.instanceKey: {XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(2), 1)},
			fx.counterKey:  {XDR: contractDataEntry(t, fx.hash, sym("counter"), u32(3), 1)},
		},
		sim: &rpc.SimulateResponse{Footprint: &rpc.Footprint{
			ReadOnly:  []string{fx.counterKey, fx.instanceKey},
			ReadWrite: []string{fx.counterKey},
		}},
	}
	ex, err := NewExplorer(src, newTestWorker(t), nil, nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	res, err := ex.InspectFootprint(context.Background(), fx.id, "AAAA")
	if err != nil {
		t.Fatalf("inspect footprint: %v", err)
	}
	got := byLedgerKey(res.Entries)
	if len(got) != 2 || got[fx.counterKey].Value != float64(3) {
		t.Fatalf("footprint entries = %+v", res.Entries)
	}

	src.sim = &rpc.SimulateResponse{Error: "host invocation failed"}
	if _, err := ex.InspectFootprint(context.Background(), fx.id, "AAAA"); err == nil {
		t.Fatalf("expected simulation error")
	}
}

type recordingSink struct {
	payloads []sink.ChangePayload
	err      error
}

func (r *recordingSink) Send(ctx context.Context, p sink.ChangePayload) error {
	r.payloads = append(r.payloads, p)
	return r.err
}

func TestInspectNotifiesSinksOnChange(t *testing.T) {
	fx := newFixture(t)
	src := &fakeSource{entries: map[string]rpc.LedgerEntry{
		fx.instanceKey: {XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(1), 1)},
	}}
	ex, err := NewExplorer(src, newTestWorker(t), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	rec := &recordingSink{}
	broken := &recordingSink{err: errors.New("hook down")}
	ex.NotifyTo("testnet", broken, rec)

	for i := 0; i < 2; i++ {
		if _, err := ex.Inspect(context.Background(), fx.id); err != nil {
			t.Fatalf("inspect %d: %v", i, err)
		}
	}
	if len(rec.payloads) != 1 || len(broken.payloads) != 1 {
		t.Fatalf("expected one notification for the first pass only, got %d", len(rec.payloads))
	}
	p := rec.payloads[0]
	if p.Network != "testnet" || p.ContractID != fx.id || p.LatestLedger != 500 {
		t.Fatalf("payload header = %+v", p)
	}
	if len(p.Changes) != 1 || p.Changes[0].Status != "added" || p.Changes[0].Value != float64(1) {
		t.Fatalf("payload changes = %+v", p.Changes)
	}
}

func TestInspectEvictsVanishedKeyOfOtherContract(t *testing.T) {
	fx := newFixture(t)
	tokenHash := bytes.Repeat([]byte{9}, 32)
	tokenID, err := strkey.Encode(strkey.VersionByteContract, tokenHash)
	if err != nil {
		t.Fatalf("encode token id: %v", err)
	}
	balanceKey := contractDataKey(t, tokenHash, sym("balance"), 1)
	src := &fakeSource{entries: map[string]rpc.LedgerEntry{
		fx.instanceKey: {XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(1), 1)},
		balanceKey:     {XDR: contractDataEntry(t, tokenHash, sym("balance"), u32(40), 1)},
	}}
	store := newTestStore(t)
	ex, err := NewExplorer(src, newTestWorker(t), store, nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	ctx := context.Background()

	first, err := ex.Inspect(ctx, fx.id, balanceKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	balance := byLedgerKey(first.Entries)[balanceKey]
	if balance.ContractID != tokenID || balance.Status != diff.Added {
		t.Fatalf("balance entry = %+v", balance)
	}

	delete(src.entries, balanceKey)
	second, err := ex.Inspect(ctx, fx.id, balanceKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	gone, ok := byLedgerKey(second.Entries)[balanceKey]
	if !ok || gone.Status != diff.Removed || gone.ContractID != tokenID || gone.Key != balance.Key {
		t.Fatalf("vanished balance = %+v (present %v)", gone, ok)
	}
	if _, ok, err := store.GetLedgerEntry(ctx, balance.Key); err != nil || ok {
		t.Fatalf("balance row should be evicted, found=%v err=%v", ok, err)
	}
}

func TestInspectVoidValueIsNotRemoved(t *testing.T) {
	fx := newFixture(t)
	void := xdr.ScVal{Type: xdr.ScValTypeScvVoid}
	src := &fakeSource{entries: map[string]rpc.LedgerEntry{
		fx.instanceKey: {XDR: contractDataEntry(t, fx.hash, instanceKeyVal, u32(1), 1)},
		fx.counterKey:  {XDR: contractDataEntry(t, fx.hash, sym("counter"), void, 1)},
	}}
	ex, err := NewExplorer(src, newTestWorker(t), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}
	ctx := context.Background()

	first, err := ex.Inspect(ctx, fx.id, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if got := byLedgerKey(first.Entries)[fx.counterKey]; got.Status != diff.Added || got.Value != nil {
		t.Fatalf("first void entry = %+v", got)
	}

	second, err := ex.Inspect(ctx, fx.id, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if got := byLedgerKey(second.Entries)[fx.counterKey]; got.Status != diff.Unchanged {
		t.Fatalf("void entry should stay unchanged, got %s", got.Status)
	}

	src.entries[fx.counterKey] = rpc.LedgerEntry{XDR: contractDataEntry(t, fx.hash, sym("counter"), u32(3), 1)}
	third, err := ex.Inspect(ctx, fx.id, fx.counterKey)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if got := byLedgerKey(third.Entries)[fx.counterKey]; got.Status != diff.Changed {
		t.Fatalf("void to value should be changed, got %s", got.Status)
	}
}
