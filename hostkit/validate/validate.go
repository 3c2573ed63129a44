// Package validate provides the reference host.Validator: struct-tag-driven
// sanity checks over go-playground/validator/v10, the same validation
// library the teacher's rpc.go uses on its wire RPCMessage/RPCData types,
// plus an app-definition whitelist check (spec scenario S6).
package validate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	playground "github.com/go-playground/validator/v10"

	"github.com/chanlattice/installproto/middleware"
)

// installDTO mirrors the fields of a ValidateContext that are checkable by
// struct tag alone; geometric/business checks (e.g. app whitelisting) are
// layered on top in ValidateInstall.
type installDTO struct {
	MultisigAddress string `validate:"required,len=42"`
	AppDefinition   string `validate:"required,len=42"`
	DefaultTimeout  uint64 `validate:"gte=0"`
}

// Validator is the reference host.Validator implementation. AppWhitelisted,
// if non-nil, is consulted to reject installs of app definitions the host
// does not recognize — the out-of-scope app registry's one touchpoint with
// this core (spec §1).
type Validator struct {
	v               *playground.Validate
	AppWhitelisted  func(appDefinition common.Address) bool
}

// New builds a Validator. A nil AppWhitelisted accepts every app definition.
func New(appWhitelisted func(common.Address) bool) *Validator {
	return &Validator{v: playground.New(), AppWhitelisted: appWhitelisted}
}

// ValidateInstall implements host.Validator.
func (val *Validator) ValidateInstall(_ context.Context, vctx middleware.ValidateContext) (string, error) {
	dto := installDTO{
		MultisigAddress: vctx.Params.MultisigAddress.Hex(),
		AppDefinition:   vctx.AppInstance.AppInterface.Addr.Hex(),
		DefaultTimeout:  vctx.AppInstance.DefaultTimeout,
	}
	if err := val.v.Struct(dto); err != nil {
		return fmt.Sprintf("malformed install request: %v", err), nil
	}

	if val.AppWhitelisted != nil && !val.AppWhitelisted(vctx.AppInstance.AppInterface.Addr) {
		return "app definition not whitelisted", nil
	}

	return "", nil
}
