//go:build !govips || !cgo

package optimizer

func Startup() error {
	return nil
}

func Shutdown() {}

func BackendName() string {
	return "imaging"
}

func newTransformer() Transformer {
	return stdlibTransformer{}
}
