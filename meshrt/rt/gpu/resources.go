package gpu

import "fmt"

// minBufferSize keeps bindings non-empty for scenes without lights or materials.
const minBufferSize = 64

// ResourceData owns the aggregate buffers of one loaded scene: every vertex, index,
// material and light lives in a single buffer of its kind.
type ResourceData struct {
	Device Device
	Label  string

	VertexBuffer   Buffer
	IndexBuffer    Buffer
	MaterialBuffer Buffer
	LightBuffer    Buffer

	VertexCount   int
	IndexCount    int
	MaterialCount int
	LightCount    int
}

func NewResourceData(dev Device, label string) *ResourceData {
	return &ResourceData{Device: dev, Label: label}
}

// ensureBuffer writes data into *buf, recreating it when it is missing or too small.
// It reports whether the buffer was recreated.
func (r *ResourceData) ensureBuffer(name string, buf *Buffer, data []byte, usage BufferUsage) (bool, error) {
	needed := uint64(max(len(data), minBufferSize))
	if needed%4 != 0 {
		needed += 4 - needed%4
	}

	recreated := false
	if *buf == nil || (*buf).Size() < needed {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
		label := name
		if r.Label != "" {
			label = r.Label + "/" + name
		}
		nb, err := r.Device.CreateBuffer(label, needed, usage|BufferUsageCopyDst)
		if err != nil {
			return false, fmt.Errorf("create %s: %w", name, err)
		}
		*buf = nb
		recreated = true
	}

	if len(data) > 0 {
		if err := r.Device.WriteBuffer(*buf, 0, data); err != nil {
			return recreated, fmt.Errorf("write %s: %w", name, err)
		}
	}
	return recreated, nil
}

func (r *ResourceData) UploadGeometry(vertices []Vertex, indices []uint32) error {
	if _, err := r.ensureBuffer("vertices", &r.VertexBuffer, PackVertices(vertices), BufferUsageStorage|BufferUsageVertex); err != nil {
		return err
	}
	if _, err := r.ensureBuffer("indices", &r.IndexBuffer, PackIndices(indices), BufferUsageIndex); err != nil {
		return err
	}
	r.VertexCount = len(vertices)
	r.IndexCount = len(indices)
	return nil
}

func (r *ResourceData) UploadMaterials(ms []MaterialData) error {
	if _, err := r.ensureBuffer("materials", &r.MaterialBuffer, PackMaterials(ms), BufferUsageStorage); err != nil {
		return err
	}
	r.MaterialCount = len(ms)
	return nil
}

func (r *ResourceData) UploadLights(ls []LightData) error {
	if _, err := r.ensureBuffer("lights", &r.LightBuffer, PackLights(ls), BufferUsageStorage); err != nil {
		return err
	}
	r.LightCount = len(ls)
	return nil
}

// Release frees the aggregate buffers. Safe to call more than once.
func (r *ResourceData) Release() {
	for _, b := range []*Buffer{&r.VertexBuffer, &r.IndexBuffer, &r.MaterialBuffer, &r.LightBuffer} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	r.VertexCount, r.IndexCount, r.MaterialCount, r.LightCount = 0, 0, 0, 0
}
