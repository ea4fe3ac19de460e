//go:build !linux && !darwin

package backlight

// Keyboard backlight control has no implementation on this platform.
type Keyboard struct{}

func OpenKeyboard() (*Keyboard, error) { return nil, ErrUnsupported }

func (k *Keyboard) Percent() (float64, error) { return 0, ErrUnsupported }
func (k *Keyboard) SetPercent(float64) error  { return ErrUnsupported }
func (k *Keyboard) Close() error              { return nil }
