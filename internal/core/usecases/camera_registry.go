package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
)

// CameraRegistry tracks registered cameras. It is safe for concurrent use.
type CameraRegistry struct {
	mu      sync.RWMutex
	cameras map[string]*domain.Camera
	repo    ports.CameraRepository
	events  ports.EventPublisher
	now     func() time.Time
}

// NewCameraRegistry creates an empty registry. repo and events may be nil.
func NewCameraRegistry(repo ports.CameraRepository, events ports.EventPublisher) *CameraRegistry {
	return &CameraRegistry{
		cameras: make(map[string]*domain.Camera),
		repo:    repo,
		events:  events,
		now:     time.Now,
	}
}

// Load replaces the registry contents with the persisted cameras.
func (r *CameraRegistry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	cams, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras = make(map[string]*domain.Camera, len(cams))
	for i := range cams {
		cam := cams[i]
		r.cameras[cam.ID] = &cam
	}
	return nil
}

// Register adds or replaces a camera.
func (r *CameraRegistry) Register(ctx context.Context, id, ip string, port int, location *domain.GeoPoint) (*domain.Camera, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: camera id is required", domain.ErrInvalidCamera)
	}
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("%w: invalid camera ip %q", domain.ErrInvalidCamera, ip)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid camera port %d", domain.ErrInvalidCamera, port)
	}
	if location != nil {
		if err := location.Validate(); err != nil {
			return nil, err
		}
	}

	cam := &domain.Camera{
		ID:        id,
		IP:        ip,
		Port:      port,
		Location:  location,
		CreatedAt: r.now().UTC(),
	}
	if r.repo != nil {
		if err := r.repo.Upsert(ctx, cam); err != nil {
			return nil, fmt.Errorf("save camera %s: %w", id, err)
		}
	}

	r.mu.Lock()
	r.cameras[id] = cam
	r.mu.Unlock()

	slog.InfoContext(ctx, "camera registered", "camera_id", id, "ip", ip, "port", port)
	c := *cam
	return &c, nil
}

// Get returns a copy of the camera with the given id.
func (r *CameraRegistry) Get(id string) (*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cam, ok := r.cameras[id]
	if !ok {
		return nil, fmt.Errorf("camera %s: %w", id, domain.ErrNotFound)
	}
	c := *cam
	return &c, nil
}

// List returns all cameras ordered by id.
func (r *CameraRegistry) List() []domain.Camera {
	r.mu.RLock()
	out := make([]domain.Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		out = append(out, *cam)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetStreaming starts or stops a camera's stream and announces the change.
func (r *CameraRegistry) SetStreaming(ctx context.Context, id string, streaming bool) (*domain.Camera, error) {
	r.mu.Lock()
	cam, ok := r.cameras[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("camera %s: %w", id, domain.ErrNotFound)
	}
	cam.Streaming = streaming
	c := *cam
	r.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.Upsert(ctx, &c); err != nil {
			return nil, fmt.Errorf("save camera %s: %w", id, err)
		}
	}
	if r.events != nil {
		if err := r.events.PublishCameraStream(ctx, &c); err != nil {
			slog.WarnContext(ctx, "publish camera stream failed", "camera_id", id, "error", err)
		}
	}
	return &c, nil
}

// Remove unregisters a camera.
func (r *CameraRegistry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.cameras[id]
	delete(r.cameras, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("camera %s: %w", id, domain.ErrNotFound)
	}
	if r.repo != nil {
		if err := r.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete camera %s: %w", id, err)
		}
	}
	return nil
}
