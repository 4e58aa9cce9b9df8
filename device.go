package ember

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle provides GPU device access from the host application.
//
// ember RECEIVES its device from the host, it does not create one. A host
// built on gogpu implements gpucontext.DeviceProvider (and HalProvider for
// direct HAL access) and passes it to [DeviceFromProvider]; standalone users
// can construct a [Device] directly from hal handles with [NewDevice].
type DeviceHandle = gpucontext.DeviceProvider

// Device bundles the hal device and its submission queue. All pool and draw
// operations run against one Device; it is safe for concurrent use as long
// as concurrently recording frames hold disjoint leases.
type Device struct {
	device hal.Device
	queue  hal.Queue
}

// NewDevice wraps already-opened hal handles. The caller retains ownership;
// ember never calls Destroy on them.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{device: device, queue: queue}
}

// DeviceFromProvider extracts the shared hal device from a host provider.
// The provider must implement HalDevice() any and HalQueue() any returning
// wgpu/hal types (gpucontext.HalProvider does).
func DeviceFromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("ember: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("ember: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("ember: provider HalQueue is not hal.Queue")
	}
	return NewDevice(device, queue), nil
}

// Hal returns the underlying hal device.
func (d *Device) Hal() hal.Device { return d.device }

// Queue returns the submission queue.
func (d *Device) Queue() hal.Queue { return d.queue }
