package spectemplate

import (
	"sort"
	"sync"

	"github.com/gosimple/slug"
)

// Registry holds the default templates keyed by normalized category name.
type Registry struct {
	mu       sync.RWMutex
	defaults map[string][]Field
	names    map[string]string // key -> display name
}

func NewRegistry() *Registry {
	return &Registry{
		defaults: make(map[string][]Field),
		names:    make(map[string]string),
	}
}

// Key normalizes a category name: "Network Equipment", " network equipment"
// and "NETWORK-EQUIPMENT" share a key.
func Key(categoryName string) string {
	return slug.Make(categoryName)
}

// Register replaces the defaults of name.
func (r *Registry) Register(name string, fields []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key(name)
	r.defaults[k] = cloneFields(fields)
	r.names[k] = name
}

// Defaults returns a fresh copy of the default fields for categoryName with
// empty values, or an empty slice when the category is unknown.
func (r *Registry) Defaults(categoryName string) []Field {
	r.mu.RLock()
	src := r.defaults[Key(categoryName)]
	r.mu.RUnlock()

	out := make([]Field, 0, len(src))
	for _, f := range src {
		f = cloneField(f)
		if f.Type == "" {
			f.Type = TypeText
		}
		f.Value = EmptyValue(f.Type)
		out = append(out, f)
	}
	return out
}

func (r *Registry) Has(categoryName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defaults[Key(categoryName)]
	return ok
}

// Names lists the display names of the known categories, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry is the registry with the built-in categories.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for name, fields := range builtins {
			defaultRegistry.Register(name, fields)
		}
	})
	return defaultRegistry
}

func text(id, label string) Field   { return Field{ID: id, Label: label, Type: TypeText} }
func number(id, label string) Field { return Field{ID: id, Label: label, Type: TypeNumber} }
func date(id, label string) Field   { return Field{ID: id, Label: label, Type: TypeDate} }
func check(id, label string) Field  { return Field{ID: id, Label: label, Type: TypeCheckbox} }
func choice(id, label string, opts ...string) Field {
	return Field{ID: id, Label: label, Type: TypeSelect, Options: opts}
}

var builtins = map[string][]Field{
	"Laptop": {
		text("cpu", "CPU"),
		number("ram", "RAM (GB)"),
		number("storage", "Storage (GB)"),
		choice("storage_type", "Storage Type", "SSD", "HDD", "NVMe"),
		number("screen_size", "Screen Size (inch)"),
		text("os", "Operating System"),
		text("mac_address", "MAC Address"),
	},
	"Desktop": {
		text("cpu", "CPU"),
		number("ram", "RAM (GB)"),
		number("storage", "Storage (GB)"),
		choice("storage_type", "Storage Type", "SSD", "HDD", "NVMe"),
		text("gpu", "Graphics Card"),
		text("os", "Operating System"),
		text("mac_address", "MAC Address"),
	},
	"Monitor": {
		number("screen_size", "Screen Size (inch)"),
		text("resolution", "Resolution"),
		choice("panel_type", "Panel Type", "IPS", "VA", "TN", "OLED"),
		number("refresh_rate", "Refresh Rate (Hz)"),
		text("ports", "Ports"),
	},
	"Server": {
		text("cpu", "CPU"),
		number("cpu_count", "CPU Sockets"),
		number("ram", "RAM (GB)"),
		number("storage", "Storage (TB)"),
		text("raid", "RAID Level"),
		text("os", "Operating System"),
		text("ip_address", "IP Address"),
		text("rack_location", "Rack Location"),
	},
	"Printer": {
		choice("printer_type", "Printer Type", "Laser", "Inkjet", "Thermal", "Multifunction"),
		check("color", "Color Printing"),
		check("duplex", "Duplex"),
		text("ip_address", "IP Address"),
		text("toner_model", "Toner / Ink Model"),
	},
	"Network Equipment": {
		choice("device_type", "Device Type", "Switch", "Router", "Firewall", "Access Point"),
		number("port_count", "Port Count"),
		text("ip_address", "IP Address"),
		text("mac_address", "MAC Address"),
		text("firmware", "Firmware Version"),
		check("poe", "PoE"),
	},
	"Mobile Phone": {
		text("imei", "IMEI"),
		text("phone_number", "Phone Number"),
		text("carrier", "Carrier"),
		number("storage", "Storage (GB)"),
		text("os", "Operating System"),
	},
	"Tablet": {
		number("screen_size", "Screen Size (inch)"),
		number("storage", "Storage (GB)"),
		text("os", "Operating System"),
		check("cellular", "Cellular"),
		text("imei", "IMEI"),
	},
	"Software License": {
		text("license_key", "License Key"),
		number("seats", "Seats"),
		choice("license_type", "License Type", "Perpetual", "Subscription", "OEM", "Volume"),
		date("expires_on", "Expiration Date"),
		text("version", "Version"),
	},
}
