package deployer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// Known-answer test from the EIP-1014 examples:
// deployer 0x00000000000000000000000000000000deadbeef, salt
// 0x00..cafebabe, init code 0xdeadbeef.
func TestDeriveAddress_KnownVector(t *testing.T) {
	deployerAddr := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	salt, err := SaltFromHex("0x00000000000000000000000000000000000000000000000000000000cafebabe")
	require.NoError(t, err)
	initCodeHash := TemplateHash(common.FromHex("0xdeadbeef"))

	got := DeriveAddress(deployerAddr, salt, initCodeHash)
	require.Equal(t, common.HexToAddress("0x60f3f640a8508fC6a86d45DF051962668E1e8AC7"), got)
}

func TestDeriveAddress_PureAndSaltSensitive(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		deployerAddr := common.BytesToAddress(rapid.SliceOfN(rapid.Byte(), 20, 20).Draw(r, "deployer"))
		saltBytes := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(r, "salt")
		var salt Salt
		copy(salt[:], saltBytes)
		initCodeHash := TemplateHash(rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(r, "initCode"))

		first := DeriveAddress(deployerAddr, salt, initCodeHash)
		second := DeriveAddress(deployerAddr, salt, initCodeHash)
		require.Equal(t, first, second, "identical inputs must derive identical addresses")

		// Flipping one bit of the salt must move the address.
		flipped := salt
		flipped[31] ^= 0x01
		require.NotEqual(t, first, DeriveAddress(deployerAddr, flipped, initCodeHash))
	})
}

func TestSaltFromHex_RoundTrip(t *testing.T) {
	salt := SaltFromString("UNIQUE_SALT")
	parsed, err := SaltFromHex(salt.Hex())
	require.NoError(t, err)
	require.Equal(t, salt, parsed)

	withPrefix, err := SaltFromHex("0x" + salt.Hex())
	require.NoError(t, err)
	require.Equal(t, salt, withPrefix)
}

func TestSaltFromHex_Invalid(t *testing.T) {
	_, err := SaltFromHex("not-hex")
	require.Error(t, err)
}

func newTestFactory(t *testing.T) *LocalFactory {
	t.Helper()
	factory, err := NewLocalFactory(
		common.HexToAddress("0x00000000000000000000000000000000deadbeef"),
		common.FromHex("0x6080604052"),
	)
	require.NoError(t, err)
	return factory
}

func TestNewLocalFactory_EmptyTemplate(t *testing.T) {
	_, err := NewLocalFactory(common.HexToAddress("0x1"), nil)
	require.ErrorIs(t, err, domain.ErrDeployFailed)
}

func TestLocalFactory_DeployDeterministic(t *testing.T) {
	factory := newTestFactory(t)
	salt := SaltFromString("UNIQUE_SALT")

	addr, err := factory.DeployDeterministic(context.Background(), salt)
	require.NoError(t, err)
	require.Equal(t, factory.PredictAddress(salt), addr, "deployment lands at the predicted address")
	require.True(t, factory.Occupied(addr))
}

func TestLocalFactory_SaltReuseCollides(t *testing.T) {
	factory := newTestFactory(t)
	salt := SaltFromString("UNIQUE_SALT")

	_, err := factory.DeployDeterministic(context.Background(), salt)
	require.NoError(t, err)

	_, err = factory.DeployDeterministic(context.Background(), salt)
	require.ErrorIs(t, err, domain.ErrAddressOccupied, "second use of a salt must collide, not silently succeed")
}

func TestLocalFactory_SaltReuseAfterRelease(t *testing.T) {
	factory := newTestFactory(t)
	salt := SaltFromString("UNIQUE_SALT")

	first, err := factory.DeployDeterministic(context.Background(), salt)
	require.NoError(t, err)

	factory.Release(first)

	// Collision is checked by occupancy, not salt history: re-deployment to
	// a released address is legitimate.
	second, err := factory.DeployDeterministic(context.Background(), salt)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLocalFactory_OccupyRehydratesCollisions(t *testing.T) {
	salt := SaltFromString("UNIQUE_SALT")

	first := newTestFactory(t)
	addr, err := first.DeployDeterministic(context.Background(), salt)
	require.NoError(t, err)

	// A fresh factory has no memory of the deployment until it is told.
	second := newTestFactory(t)
	second.Occupy(addr)

	_, err = second.DeployDeterministic(context.Background(), salt)
	require.ErrorIs(t, err, domain.ErrAddressOccupied)

	second.Release(addr)
	reused, err := second.DeployDeterministic(context.Background(), salt)
	require.NoError(t, err)
	require.Equal(t, addr, reused)
}

func TestLocalFactory_DeploySkipsOccupiedNonceSlots(t *testing.T) {
	first := newTestFactory(t)
	taken, err := first.Deploy(context.Background())
	require.NoError(t, err)

	second := newTestFactory(t)
	second.Occupy(taken)

	addr, err := second.Deploy(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, taken, addr, "nonce slot zero is already held")
}

func TestLocalFactory_DirectDeploysNeverRepeat(t *testing.T) {
	factory := newTestFactory(t)

	seen := make(map[common.Address]bool)
	for i := 0; i < 50; i++ {
		addr, err := factory.Deploy(context.Background())
		require.NoError(t, err)
		require.False(t, seen[addr], "nonce-derived addresses must be unique")
		seen[addr] = true
	}
}
