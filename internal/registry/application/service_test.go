package application

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/registrar/internal/accesscontrol"
	"github.com/zjrosen/registrar/internal/deployer"
	"github.com/zjrosen/registrar/internal/infrastructure/memory"
	"github.com/zjrosen/registrar/internal/registry/domain"
	"github.com/zjrosen/registrar/internal/testutil"
)

var (
	testOwner    = common.HexToAddress("0x000000000000000000000000000000000000aAaA")
	testStranger = common.HexToAddress("0x000000000000000000000000000000000000bBbB")
	testInitCode = []byte{0x60, 0x80, 0x60, 0x40}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	factory, err := deployer.NewLocalFactory(testOwner, testInitCode)
	require.NoError(t, err)
	svc := NewService(memory.NewEntryRepository(), factory, accesscontrol.NewGate(testOwner))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_CreateDirect(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "ipfs://direct")
	require.NoError(t, err)
	require.Equal(t, uint64(0), entry.ID())
	require.NotEqual(t, common.Address{}, entry.Address())

	uri, err := svc.Metadata(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "ipfs://direct", uri)
}

func TestService_CreateDirect_EmptyMetadataAllowed(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.CreateDirect(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, entry.MetadataURI())
}

func TestService_CreateDeterministic_EmptyMetadataRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateDeterministic(ctx, deployer.SaltFromString("SALT"), "")
	require.ErrorIs(t, err, domain.ErrInvalidMetadata)

	// Nothing was consumed: the next creation still gets identifier 0.
	next, err := svc.NextID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), next)
}

func TestService_CreateDeterministic_AddressMatchesPrediction(t *testing.T) {
	svc := newTestService(t)
	salt := deployer.SaltFromString("UNIQUE_SALT")

	predicted := svc.PredictAddress(salt)
	entry, err := svc.CreateDeterministic(context.Background(), salt, "ipfs://deterministic")
	require.NoError(t, err)
	require.Equal(t, predicted, entry.Address())
	require.Equal(t, salt.Hex(), entry.SaltHex())
}

func TestService_CreateDeterministic_SaltCollision(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	salt := deployer.SaltFromString("UNIQUE_SALT")

	_, err := svc.CreateDeterministic(ctx, salt, "first")
	require.NoError(t, err)

	_, err = svc.CreateDeterministic(ctx, salt, "second")
	require.ErrorIs(t, err, domain.ErrAddressOccupied)

	// The failed creation must not burn an identifier.
	next, err := svc.NextID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)
}

func TestService_CreateDeterministic_SaltReusableAfterDestroy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	salt := deployer.SaltFromString("UNIQUE_SALT")

	first, err := svc.CreateDeterministic(ctx, salt, "first")
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(ctx, testOwner, first.ID()))

	second, err := svc.CreateDeterministic(ctx, salt, "second")
	require.NoError(t, err)
	require.Equal(t, first.Address(), second.Address(), "same salt derives the same address")
	require.Equal(t, first.ID()+1, second.ID(), "the tombstoned identifier is never reused")
}

func TestService_RegistrationScenario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateDeterministic(ctx, deployer.SaltFromString("UNIQUE_SALT"), "Metadata URI")
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.ID())

	second, err := svc.CreateDeterministic(ctx, deployer.SaltFromString("ANOTHER_UNIQUE_SALT"), "Another Metadata URI")
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.ID())

	require.NotEqual(t, first.Address(), second.Address())

	uri, err := svc.Metadata(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "Metadata URI", uri)

	uri, err = svc.Metadata(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Another Metadata URI", uri)
}

func TestService_Metadata_UnknownID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Metadata(context.Background(), 999)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = svc.AddressOf(context.Background(), 999)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestService_UpdateMetadata(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "before")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateMetadata(ctx, testOwner, entry.ID(), "after"))

	uri, err := svc.Metadata(ctx, entry.ID())
	require.NoError(t, err)
	require.Equal(t, "after", uri, "the cache must not serve the stale value")
}

func TestService_UpdateMetadata_NotOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "original")
	require.NoError(t, err)

	err = svc.UpdateMetadata(ctx, testStranger, entry.ID(), "hijacked")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	uri, err := svc.Metadata(ctx, entry.ID())
	require.NoError(t, err)
	require.Equal(t, "original", uri, "a rejected update leaves the entry unchanged")
}

func TestService_UpdateMetadata_UnknownID(t *testing.T) {
	svc := newTestService(t)
	err := svc.UpdateMetadata(context.Background(), testOwner, 999, "uri")
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestService_Destroy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "doomed")
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(ctx, testOwner, entry.ID()))

	// Metadata of a tombstone is an error.
	_, err = svc.Metadata(ctx, entry.ID())
	require.ErrorIs(t, err, domain.ErrEntryDestroyed)

	// The address read succeeds and reports the zero address.
	addr, err := svc.AddressOf(ctx, entry.ID())
	require.NoError(t, err)
	require.Equal(t, common.Address{}, addr)
}

func TestService_Destroy_NotOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "safe")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Destroy(ctx, testStranger, entry.ID()), domain.ErrUnauthorized)

	uri, err := svc.Metadata(ctx, entry.ID())
	require.NoError(t, err)
	require.Equal(t, "safe", uri)
}

func TestService_Destroy_Twice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "doomed")
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(ctx, testOwner, entry.ID()))
	require.ErrorIs(t, svc.Destroy(ctx, testOwner, entry.ID()), domain.ErrEntryDestroyed)
}

// Updates do not check liveness: a tombstone's metadata field can be
// rewritten, but reads via Metadata still report it destroyed.
func TestService_Destroy_UpdateAfterwardsWritesBlindly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "doomed")
	require.NoError(t, err)
	require.NoError(t, svc.Destroy(ctx, testOwner, entry.ID()))

	require.NoError(t, svc.UpdateMetadata(ctx, testOwner, entry.ID(), "resurrection"))

	_, err = svc.Metadata(ctx, entry.ID())
	require.ErrorIs(t, err, domain.ErrEntryDestroyed)

	stored, err := svc.Get(ctx, entry.ID())
	require.NoError(t, err)
	require.Equal(t, "resurrection", stored.MetadataURI())
}

func TestService_UpdateMetadata_EmptyAllowed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.CreateDirect(ctx, "something")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateMetadata(ctx, testOwner, entry.ID(), ""))

	uri, err := svc.Metadata(ctx, entry.ID())
	require.NoError(t, err)
	require.Empty(t, uri)
}

func TestService_Ownership(t *testing.T) {
	svc := newTestService(t)
	require.Equal(t, testOwner, svc.Owner())

	require.ErrorIs(t, svc.TransferOwnership(testStranger, testStranger), domain.ErrUnauthorized)

	require.NoError(t, svc.TransferOwnership(testOwner, testStranger))
	require.Equal(t, testStranger, svc.Owner())

	require.NoError(t, svc.RenounceOwnership(testStranger))
	require.Equal(t, common.Address{}, svc.Owner())

	// Nobody can mutate after renounce, not even former owners.
	entry, err := svc.CreateDirect(context.Background(), "uri")
	require.NoError(t, err)
	require.ErrorIs(t, svc.Destroy(context.Background(), testStranger, entry.ID()), domain.ErrUnauthorized)
}

func TestService_Events(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := svc.Subscribe(ctx)

	entry, err := svc.CreateDirect(ctx, "uri")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateMetadata(ctx, testOwner, entry.ID(), "updated"))
	require.NoError(t, svc.Destroy(ctx, testOwner, entry.ID()))

	expected := []EventType{EventInstanceCreated, EventMetadataUpdated, EventInstanceDestroyed}
	for _, want := range expected {
		select {
		case evt := <-events:
			require.Equal(t, want, evt.Payload.Type)
			require.Equal(t, entry.ID(), evt.Payload.EntryID)
			require.NotEmpty(t, evt.Payload.EventID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

// A restart leaves the durable store populated but the local factory empty.
// RestoreOccupancy replays the live entries into the factory so salts and
// nonce slots used before the restart keep colliding afterwards.
func TestService_RestoreOccupancy_AcrossRebuild(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	ctx := context.Background()
	salt := deployer.SaltFromString("UNIQUE_SALT")

	factory1, err := deployer.NewLocalFactory(testOwner, testInitCode)
	require.NoError(t, err)
	svc1 := NewService(repo, factory1, accesscontrol.NewGate(testOwner))

	first, err := svc1.CreateDeterministic(ctx, salt, "survives restarts")
	require.NoError(t, err)
	direct, err := svc1.CreateDirect(ctx, "direct before restart")
	require.NoError(t, err)
	require.NoError(t, svc1.Close())

	// Second process over the same database, fresh factory state.
	factory2, err := deployer.NewLocalFactory(testOwner, testInitCode)
	require.NoError(t, err)
	svc2 := NewService(repo, factory2, accesscontrol.NewGate(testOwner))
	t.Cleanup(func() { _ = svc2.Close() })
	require.NoError(t, svc2.RestoreOccupancy(ctx))

	_, err = svc2.CreateDeterministic(ctx, salt, "squatter")
	require.ErrorIs(t, err, domain.ErrAddressOccupied,
		"a salt used before the restart must keep colliding after it")

	next, err := svc2.NextID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), next, "failed creation must not consume an identifier")

	// The nonce also restarted at zero; the occupied slot is skipped.
	fresh, err := svc2.CreateDirect(ctx, "direct after restart")
	require.NoError(t, err)
	require.NotEqual(t, direct.Address(), fresh.Address())

	// Destroying the original occupant frees the salt as usual.
	require.NoError(t, svc2.Destroy(ctx, testOwner, first.ID()))
	reused, err := svc2.CreateDeterministic(ctx, salt, "legitimate reuse")
	require.NoError(t, err)
	require.Equal(t, first.Address(), reused.Address())
}

// TestService_IdentifiersAreSequential drives a random interleaving of
// creations, destroys, and failed creations and checks that successful
// creations observe exactly 0, 1, 2, ... in order.
func TestService_IdentifiersAreSequential(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		factory, err := deployer.NewLocalFactory(testOwner, testInitCode)
		require.NoError(r, err)
		svc := NewService(memory.NewEntryRepository(), factory, accesscontrol.NewGate(testOwner))
		defer func() { _ = svc.Close() }()

		ctx := context.Background()
		var created []uint64
		numOps := rapid.IntRange(1, 30).Draw(r, "numOps")

		for i := 0; i < numOps; i++ {
			switch rapid.IntRange(0, 3).Draw(r, "op") {
			case 0:
				entry, err := svc.CreateDirect(ctx, "uri")
				require.NoError(r, err)
				created = append(created, entry.ID())
			case 1:
				salt := deployer.SaltFromString(rapid.StringMatching(`[a-z]{1,8}`).Draw(r, "salt"))
				entry, err := svc.CreateDeterministic(ctx, salt, "uri")
				if err != nil {
					// Salt collision with a live occupant. No identifier burned.
					require.ErrorIs(r, err, domain.ErrAddressOccupied)
					continue
				}
				created = append(created, entry.ID())
			case 2:
				// Failed creation: empty deterministic metadata.
				_, err := svc.CreateDeterministic(ctx, deployer.SaltFromString("x"), "")
				require.ErrorIs(r, err, domain.ErrInvalidMetadata)
			case 3:
				if len(created) > 0 {
					id := created[rapid.IntRange(0, len(created)-1).Draw(r, "victim")]
					err := svc.Destroy(ctx, testOwner, id)
					if err != nil {
						require.ErrorIs(r, err, domain.ErrEntryDestroyed)
					}
				}
			}
		}

		for i, id := range created {
			require.Equal(r, uint64(i), id)
		}
	})
}
