package validate

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanlattice/installproto/middleware"
	"github.com/chanlattice/installproto/statechannel"
)

func fixtureContext(multisig, appDef common.Address, timeout uint64) middleware.ValidateContext {
	return middleware.ValidateContext{
		Params: statechannel.InstallParams{
			MultisigAddress: multisig,
		},
		AppInstance: statechannel.AppInstance{
			AppInterface:   statechannel.AppInterface{Addr: appDef},
			DefaultTimeout: timeout,
		},
	}
}

func TestValidateInstall_AcceptsWellFormedRequest(t *testing.T) {
	v := New(nil)
	reason, err := v.ValidateInstall(context.Background(), fixtureContext(
		common.HexToAddress("0x1"), common.HexToAddress("0x2"), 100))
	require.NoError(t, err)
	assert.Empty(t, reason)
}

func TestValidateInstall_RejectsUnwhitelistedAppDefinition(t *testing.T) {
	whitelist := common.HexToAddress("0xaaaa")
	v := New(func(addr common.Address) bool { return addr == whitelist })

	reason, err := v.ValidateInstall(context.Background(), fixtureContext(
		common.HexToAddress("0x1"), common.HexToAddress("0xbbbb"), 100))
	require.NoError(t, err)
	assert.Equal(t, "app definition not whitelisted", reason)
}

func TestValidateInstall_AcceptsWhitelistedAppDefinition(t *testing.T) {
	whitelist := common.HexToAddress("0xaaaa")
	v := New(func(addr common.Address) bool { return addr == whitelist })

	reason, err := v.ValidateInstall(context.Background(), fixtureContext(
		common.HexToAddress("0x1"), whitelist, 100))
	require.NoError(t, err)
	assert.Empty(t, reason)
}
