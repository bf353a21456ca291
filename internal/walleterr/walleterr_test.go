package walleterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindNetwork, CodeProviderUnreachable, "dial %s", "sepolia")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsKind(err, KindNetwork))
	assert.Equal(t, CodeProviderUnreachable, CodeOf(err))
	assert.Contains(t, err.Error(), "sepolia")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestOutermostCodeWins(t *testing.T) {
	inner := New(KindStorage, CodeKeyNotFound, "missing")
	outer := Wrap(inner, KindWallet, CodeWalletNotFound, "lookup")

	assert.Equal(t, CodeWalletNotFound, CodeOf(outer))
	assert.True(t, IsKind(outer, KindWallet))
	assert.True(t, IsCode(outer, CodeWalletNotFound))

	var we *Error
	require.True(t, errors.As(outer, &we))
	assert.Equal(t, CodeWalletNotFound, we.Code)
}

func TestUserMessageFallback(t *testing.T) {
	assert.Equal(t, "The wallet is disconnected. Connect it again.",
		UserMessage(New(KindWallet, CodeWalletDisconnected, "x")))

	assert.Equal(t, genericUserMessage, UserMessage(errors.New("raw")))
	assert.Equal(t, genericUserMessage, UserMessage(nil))
	assert.Equal(t, genericUserMessage, UserMessage(New(KindWallet, "some_new_code", "x")))
}

func TestEveryCodeHasUserMessage(t *testing.T) {
	codes := []string{
		CodeInvalidAppID, CodeUnsupportedNetwork, CodeUnsupportedVariant,
		CodeInvalidURL, CodeNotInitialized,
		CodeProviderUnreachable, CodeRPCFailure, CodeHealthCheckTimeout, CodeNoHealthyProvider,
		CodeInvalidPrivateKey, CodeWalletNotFound, CodeWalletDisconnected,
		CodeInvalidCall, CodeExecutionFailed, CodeConfirmationTimeout, CodeNotImplemented,
		CodeStorageAccess, CodeEncryptionFailed, CodeKeyNotFound, CodeSelfTestFailed,
		CodeBiometricUnavailable, CodeBiometricFailed,
	}
	for _, c := range codes {
		msg, ok := userMessages[c]
		assert.True(t, ok, "code %s has no user message", c)
		assert.NotEmpty(t, msg)
	}
}

func TestWrappedStdErrorStillMatches(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindTransaction, CodeExecutionFailed, "boom"))
	assert.True(t, IsKind(err, KindTransaction))
	assert.Equal(t, CodeExecutionFailed, CodeOf(err))
}
