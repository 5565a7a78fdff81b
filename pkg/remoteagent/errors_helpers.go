package remoteagent

import (
	"errors"
	"net"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
)

func asAgentError(err error, target **agenterrors.AgentError) bool {
	return errors.As(err, target)
}

func asNetError(err error, target *net.Error) bool {
	return errors.As(err, target)
}
