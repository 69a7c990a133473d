package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// InMemDeviceRepository implements DeviceRepository using an in-memory map
type InMemDeviceRepository struct {
	devices map[uuid.UUID]Device
	mu      sync.Mutex
}

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[uuid.UUID]Device),
	}
}

// CreateDevice creates a new device in memory
func (r *InMemDeviceRepository) CreateDevice(ctx context.Context, device Device) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices[device.ID] = device
	slog.Debug("Device created", "deviceID", device.ID, "loginID", device.LoginID)
	return device, nil
}

// GetDeviceByPermanentToken retrieves a device by its permanent token
func (r *InMemDeviceRepository) GetDeviceByPermanentToken(ctx context.Context, permanentToken string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, device := range r.devices {
		if device.PermanentToken == permanentToken {
			return device, nil
		}
	}
	slog.Debug("Device not found by permanent token")
	return Device{}, ErrDeviceNotFound
}

// GetDeviceByID retrieves a device by its id
func (r *InMemDeviceRepository) GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[id]
	if !exists {
		slog.Debug("Device not found", "deviceID", id)
		return Device{}, ErrDeviceNotFound
	}
	return device, nil
}

// FindDevicesByLogin returns all devices belonging to a login,
// ordered by creation time with ties broken by id
func (r *InMemDeviceRepository) FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]Device, 0)
	for _, device := range r.devices {
		if device.LoginID == loginID {
			devices = append(devices, device)
		}
	}

	slices.SortFunc(devices, func(a, b Device) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	slog.Debug("Found devices by login", "loginID", loginID, "count", len(devices))
	return devices, nil
}

// TouchDevice advances the device's last request timestamp
func (r *InMemDeviceRepository) TouchDevice(ctx context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[id]
	if !exists {
		slog.Debug("Device not found for touch", "deviceID", id)
		return ErrDeviceNotFound
	}

	// monotonic: never move the timestamp backwards
	if now.After(device.LastRequestAt) {
		device.LastRequestAt = now
		r.devices[id] = device
	}
	return nil
}

// DeleteDevice removes the device if it belongs to the given login
func (r *InMemDeviceRepository) DeleteDevice(ctx context.Context, loginID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[id]
	if !exists || device.LoginID != loginID {
		slog.Debug("Device not found for delete", "deviceID", id, "loginID", loginID)
		return ErrDeviceNotFound
	}

	delete(r.devices, id)
	slog.Debug("Device deleted", "deviceID", id)
	return nil
}

// DeleteDeviceIfInactiveSince removes the device while its last request
// timestamp is still at or before cutoff
func (r *InMemDeviceRepository) DeleteDeviceIfInactiveSince(ctx context.Context, id uuid.UUID, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[id]
	if !exists {
		return nil
	}
	if device.LastRequestAt.After(cutoff) {
		// a concurrent refresh already extended the window
		slog.Debug("Device no longer inactive, skipping delete", "deviceID", id)
		return nil
	}

	delete(r.devices, id)
	slog.Debug("Expired device deleted", "deviceID", id)
	return nil
}
