package confloader

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form, use Read()")

// mapProvider is a koanf provider over a map with dotted keys.
type mapProvider map[string]any

// ReadBytes implements koanf.Provider.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read implements koanf.Provider. Dotted keys are expanded into nested maps.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		insertDotted(out, k, v)
	}
	return out, nil
}

func insertDotted(dst map[string]any, key string, v any) {
	for i := 0; i < len(key); i++ {
		if key[i] != '.' {
			continue
		}
		head, rest := key[:i], key[i+1:]
		child, ok := dst[head].(map[string]any)
		if !ok {
			child = make(map[string]any)
			dst[head] = child
		}
		insertDotted(child, rest, v)
		return
	}
	dst[key] = v
}
