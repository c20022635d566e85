package winapp

import "github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"

func init() {
	platform.NewDriverFunc = func(endpoint string, opts platform.Options) (platform.Driver, error) {
		return New(endpoint, opts)
	}
}
