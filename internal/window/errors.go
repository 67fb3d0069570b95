package window

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/pixview/internal/surface"
)

var (
	ErrNotCreated        = errors.New("window: session not created")
	ErrAlreadyCreated    = errors.New("window: session already created")
	ErrDisposed          = errors.New("window: session disposed")
	ErrAlreadyRegistered = errors.New("window: callback already registered")
	ErrInvalidFormat     = errors.New("window: invalid pixel format")
	ErrBufferSize        = errors.New("window: buffer does not match size")
	ErrManaged           = errors.New("window: session is managed")
	ErrNativeCall        = errors.New("window: native call failed")
)

// NativeError reports a non-OK status from the surface driver.
type NativeError struct {
	Op     string
	Status surface.Status
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("window: native %s failed: %s", e.Op, e.Status)
}

// Is makes errors.Is(err, ErrNativeCall) match any NativeError.
func (e *NativeError) Is(target error) bool {
	return target == ErrNativeCall
}
