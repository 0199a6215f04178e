package camera

import "homecam-gateway/internal/models"

// Registry holds the descriptor list produced by discovery. It is read-only
// after construction, so lookups need no locking. IDs are sequential and
// 1-based across the local-then-network concatenation; they are stable for
// the process lifetime only, since device enumeration order may change
// across restarts.
type Registry struct {
	cameras []models.CameraDescriptor
}

func NewRegistry(descriptors []models.CameraDescriptor) *Registry {
	cameras := make([]models.CameraDescriptor, len(descriptors))
	copy(cameras, descriptors)
	for i := range cameras {
		cameras[i].ID = i + 1
	}
	return &Registry{cameras: cameras}
}

// List returns a copy of all descriptors.
func (r *Registry) List() []models.CameraDescriptor {
	out := make([]models.CameraDescriptor, len(r.cameras))
	copy(out, r.cameras)
	return out
}

func (r *Registry) Get(id int) (models.CameraDescriptor, bool) {
	if id < 1 || id > len(r.cameras) {
		return models.CameraDescriptor{}, false
	}
	return r.cameras[id-1], true
}

func (r *Registry) Len() int {
	return len(r.cameras)
}
