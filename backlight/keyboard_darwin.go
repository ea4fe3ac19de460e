//go:build darwin

package backlight

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Keyboard drives the built-in keyboard backlight through the private
// CoreBrightness framework (KeyboardBrightnessClient). Keyboard ID 1 is
// the built-in keyboard.
type Keyboard struct {
	instance   uintptr
	keyboardID uintptr
}

var (
	objcRuntime uintptr

	objcGetClass   func(name *byte) uintptr
	objcSelRegName func(name *byte) uintptr
	objcMsgSend    func(receiver uintptr, sel uintptr, args ...uintptr) uintptr

	// For float returns (objc_msgSend handles fp returns on arm64)
	objcMsgSendFpret func(receiver uintptr, sel uintptr, args ...uintptr) float32

	selAlloc              uintptr
	selInit               uintptr
	selLoad               uintptr
	selSetBrightnessFade  uintptr
	selBrightnessForKB    uintptr
	selAutoBrightness     uintptr
	selSuspendIdleDimming uintptr

	objcReady bool
)

func initObjc() error {
	if objcReady {
		return nil
	}

	var err error
	objcRuntime, err = purego.Dlopen("/usr/lib/libobjc.A.dylib", purego.RTLD_LAZY)
	if err != nil {
		return fmt.Errorf("dlopen libobjc: %w", err)
	}

	purego.RegisterLibFunc(&objcGetClass, objcRuntime, "objc_getClass")
	purego.RegisterLibFunc(&objcSelRegName, objcRuntime, "sel_registerName")
	purego.RegisterLibFunc(&objcMsgSend, objcRuntime, "objc_msgSend")
	purego.RegisterLibFunc(&objcMsgSendFpret, objcRuntime, "objc_msgSend")

	selAlloc = sel("alloc")
	selInit = sel("init")
	selLoad = sel("load")
	selSetBrightnessFade = sel("setBrightness:fadeSpeed:commit:forKeyboard:")
	selBrightnessForKB = sel("brightnessForKeyboard:")
	selAutoBrightness = sel("enableAutoBrightness:forKeyboard:")
	selSuspendIdleDimming = sel("suspendIdleDimming:forKeyboard:")

	objcReady = true
	return nil
}

func sel(name string) uintptr {
	b := make([]byte, len(name)+1)
	copy(b, name)
	return objcSelRegName(&b[0])
}

func cls(name string) uintptr {
	b := make([]byte, len(name)+1)
	copy(b, name)
	return objcGetClass(&b[0])
}

func newNSString(s string) uintptr {
	nsCls := cls("NSString")
	selStr := sel("stringWithUTF8String:")
	b := make([]byte, len(s)+1)
	copy(b, s)
	return objcMsgSend(nsCls, selStr, uintptr(unsafe.Pointer(&b[0])))
}

// OpenKeyboard loads CoreBrightness and creates a brightness client for
// the built-in keyboard. macOS's own auto-brightness and idle dimming
// are suspended while we hold the device, so they don't fight ours.
func OpenKeyboard() (*Keyboard, error) {
	if err := initObjc(); err != nil {
		return nil, err
	}

	nsBundleCls := cls("NSBundle")
	if nsBundleCls == 0 {
		return nil, fmt.Errorf("NSBundle class not found")
	}

	path := newNSString("/System/Library/PrivateFrameworks/CoreBrightness.framework")
	bundle := objcMsgSend(nsBundleCls, sel("bundleWithPath:"), path)
	if bundle == 0 {
		return nil, fmt.Errorf("CoreBrightness.framework not found")
	}
	objcMsgSend(bundle, selLoad)

	kbcClass := cls("KeyboardBrightnessClient")
	if kbcClass == 0 {
		return nil, fmt.Errorf("KeyboardBrightnessClient class not found")
	}

	instance := objcMsgSend(kbcClass, selAlloc)
	instance = objcMsgSend(instance, selInit)
	if instance == 0 {
		return nil, fmt.Errorf("creating KeyboardBrightnessClient failed")
	}

	k := &Keyboard{instance: instance, keyboardID: 1}
	k.setAutoBrightness(false)
	k.suspendIdleDimming(true)
	return k, nil
}

// Percent returns the current keyboard backlight level as a percentage.
func (k *Keyboard) Percent() (float64, error) {
	level := objcMsgSendFpret(k.instance, selBrightnessForKB, k.keyboardID)
	return float64(level) * 100, nil
}

// SetPercent sets the backlight level with no fade; stepping is the
// caller's job.
func (k *Keyboard) SetPercent(pct float64) error {
	level := float32(clampPercent(pct) / 100)
	lvl := uintptr(*(*uint32)(unsafe.Pointer(&level)))
	commit := uintptr(1) // YES
	objcMsgSend(k.instance, selSetBrightnessFade, lvl, uintptr(0), commit, k.keyboardID)
	return nil
}

// Close hands idle dimming and auto-brightness back to macOS.
func (k *Keyboard) Close() error {
	k.suspendIdleDimming(false)
	k.setAutoBrightness(true)
	return nil
}

func (k *Keyboard) setAutoBrightness(enabled bool) {
	var val uintptr
	if enabled {
		val = 1
	}
	objcMsgSend(k.instance, selAutoBrightness, val, k.keyboardID)
}

func (k *Keyboard) suspendIdleDimming(suspend bool) {
	var val uintptr
	if suspend {
		val = 1
	}
	objcMsgSend(k.instance, selSuspendIdleDimming, val, k.keyboardID)
}
