package spibus

// Device is an opaque handle for one chip hanging off the bus. The registry
// is write-only for now: there is no removal and no lookup by name, and
// chip-select routing is the firmware's business.
type Device struct {
	bus  *SPIBus
	name string
}

// NewDevice creates a device handle and attaches it to the bus, the way a
// chip driver would in its constructor.
func NewDevice(bus *SPIBus, name string) *Device {
	d := &Device{bus: bus, name: name}
	bus.AttachDevice(d)
	return d
}

// Name returns the display name of the device.
func (d *Device) Name() string {
	return d.name
}

// Transfer performs an equal-length exchange through the owning bus.
func (d *Device) Transfer(data []byte) ([]byte, error) {
	return d.bus.Transfer(data)
}

// TransferN performs an exchange with an explicit receive length through
// the owning bus.
func (d *Device) TransferN(data []byte, receiveLength int) ([]byte, error) {
	return d.bus.TransferN(data, receiveLength)
}
