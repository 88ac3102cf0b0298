package hcloud

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur while another action on the same server
// is running. A later resubmission usually succeeds.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,         // Item is locked (action running)
		hcloud.ErrorCodeConflict,       // Resource changed during request
		hcloud.ErrorCodeResourceLocked, // Resource locked (contact support)
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isUnauthorized checks if an error indicates the token may not make the call.
func isUnauthorized(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeUnauthorized,
		hcloud.ErrorCodeForbidden,
	)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// classify converts hcloud API errors into control-plane errors.
func classify(op controlplane.OperationKind, err error) error {
	switch {
	case err == nil:
		return nil
	case isResourceLocked(err):
		return &controlplane.SpuriousRejectionError{Op: op, Err: err}
	case isUnauthorized(err):
		return &controlplane.AuthorizationError{Err: err}
	default:
		return err
	}
}
