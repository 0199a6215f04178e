package camera

import (
	"testing"

	"homecam-gateway/internal/models"
)

func TestRegistryAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry([]models.CameraDescriptor{
		{Name: "Built-in Camera (Default)", Kind: models.TransportLocal, DeviceIndex: 0},
		{Name: "External Camera 1", Kind: models.TransportLocal, DeviceIndex: 1},
		{Name: "Front Door", Kind: models.TransportNetworkStream, URL: "rtsp://host/stream"},
	})

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	for i, desc := range r.List() {
		if desc.ID != i+1 {
			t.Errorf("camera %d has ID %d, want %d", i, desc.ID, i+1)
		}
	}

	desc, ok := r.Get(3)
	if !ok {
		t.Fatal("Get(3) not found")
	}
	if desc.Name != "Front Door" {
		t.Errorf("Get(3).Name = %q, want Front Door", desc.Name)
	}
}

func TestRegistryGetOutOfRange(t *testing.T) {
	r := NewRegistry([]models.CameraDescriptor{{Name: "cam", Kind: models.TransportLocal}})

	for _, id := range []int{0, -1, 2} {
		if _, ok := r.Get(id); ok {
			t.Errorf("Get(%d) found a camera, want none", id)
		}
	}
}

func TestRegistryListIsCopy(t *testing.T) {
	r := NewRegistry([]models.CameraDescriptor{{Name: "cam", Kind: models.TransportLocal}})

	list := r.List()
	list[0].Name = "mutated"

	if desc, _ := r.Get(1); desc.Name != "cam" {
		t.Errorf("registry entry mutated through List result: %q", desc.Name)
	}
}
