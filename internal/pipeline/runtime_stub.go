//go:build !govips || !cgo

package pipeline

func Startup(int) error {
	return nil
}

func Shutdown() {}

func newCodec() (ImageCodec, VectorRasterizer) {
	return stdCodec{}, Unavailable{
		Capability: CapabilityVectorRasterizer,
		Reason:     "built without the govips tag",
	}
}
