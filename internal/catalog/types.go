// Package catalog defines the read-only catalog partitions the recommendation
// pipeline works against, and the interface used to read them.
package catalog

import (
	"fmt"
	"strings"
)

// Partition names a catalog table.
type Partition string

const (
	PartitionSwitches    Partition = "switches"
	PartitionBoards      Partition = "boards"
	PartitionKeycapSets  Partition = "keycap_sets"
	PartitionAccessories Partition = "accessories"
)

// Partitions lists every partition in load order.
var Partitions = []Partition{
	PartitionSwitches,
	PartitionBoards,
	PartitionKeycapSets,
	PartitionAccessories,
}

// SwitchType is the actuation mechanism of a switch.
type SwitchType string

const (
	SwitchLinear  SwitchType = "linear"
	SwitchTactile SwitchType = "tactile"
	SwitchClicky  SwitchType = "clicky"
)

// Switch is one entry of the switches partition. Price is per switch.
type Switch struct {
	ID             string     `yaml:"id" json:"id"`
	Name           string     `yaml:"name" json:"name"`
	Brand          string     `yaml:"brand" json:"brand"`
	Price          float64    `yaml:"price" json:"price"`
	Type           SwitchType `yaml:"type" json:"type"`
	Sound          string     `yaml:"sound" json:"sound"`
	Feel           string     `yaml:"feel" json:"feel"`
	ActuationForce float64    `yaml:"actuation_force" json:"actuation_force"`
	InStock        bool       `yaml:"in_stock" json:"in_stock"`
	Rating         float64    `yaml:"rating" json:"rating"`
	ImageURL       string     `yaml:"image_url" json:"image_url,omitempty"`
	ProductURL     string     `yaml:"product_url" json:"product_url,omitempty"`
}

// Board is one entry of the boards partition (the keyboard frame or kit).
type Board struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	Brand        string  `yaml:"brand" json:"brand"`
	Price        float64 `yaml:"price" json:"price"`
	Size         string  `yaml:"size" json:"size"`
	Wireless     bool    `yaml:"wireless" json:"wireless"`
	HotSwap      bool    `yaml:"hot_swap" json:"hot_swap"`
	Mount        string  `yaml:"mount" json:"mount"`
	CaseMaterial string  `yaml:"case_material" json:"case_material"`
	Sound        string  `yaml:"sound" json:"sound"`
	InStock      bool    `yaml:"in_stock" json:"in_stock"`
	Rating       float64 `yaml:"rating" json:"rating"`
	ImageURL     string  `yaml:"image_url" json:"image_url,omitempty"`
	ProductURL   string  `yaml:"product_url" json:"product_url,omitempty"`
}

// KeycapSet is one entry of the keycap_sets partition.
type KeycapSet struct {
	ID         string  `yaml:"id" json:"id"`
	Name       string  `yaml:"name" json:"name"`
	Brand      string  `yaml:"brand" json:"brand"`
	Price      float64 `yaml:"price" json:"price"`
	Material   string  `yaml:"material" json:"material"`
	Profile    string  `yaml:"profile" json:"profile"`
	Sound      string  `yaml:"sound" json:"sound"`
	InStock    bool    `yaml:"in_stock" json:"in_stock"`
	Rating     float64 `yaml:"rating" json:"rating"`
	ImageURL   string  `yaml:"image_url" json:"image_url,omitempty"`
	ProductURL string  `yaml:"product_url" json:"product_url,omitempty"`
}

// Accessory is one entry of the accessories partition: mods, stabilizers,
// tools and dampening material.
type Accessory struct {
	ID         string  `yaml:"id" json:"id"`
	Name       string  `yaml:"name" json:"name"`
	Brand      string  `yaml:"brand" json:"brand"`
	Price      float64 `yaml:"price" json:"price"`
	Category   string  `yaml:"category" json:"category"`
	Effect     string  `yaml:"effect" json:"effect"`
	Difficulty string  `yaml:"difficulty" json:"difficulty"`
	InStock    bool    `yaml:"in_stock" json:"in_stock"`
	Rating     float64 `yaml:"rating" json:"rating"`
}

// Sponsorship is an active promoted placement.
type Sponsorship struct {
	ProductName string `yaml:"product_name" json:"product_name"`
	VendorName  string `yaml:"vendor_name" json:"vendor_name"`
}

// FullName returns "brand name", the string recommendations are matched against.
func (s Switch) FullName() string { return joinName(s.Brand, s.Name) }

// FullName returns "brand name".
func (b Board) FullName() string { return joinName(b.Brand, b.Name) }

// FullName returns "brand name".
func (k KeycapSet) FullName() string { return joinName(k.Brand, k.Name) }

// FullName returns "brand name".
func (a Accessory) FullName() string { return joinName(a.Brand, a.Name) }

func joinName(brand, name string) string {
	brand = strings.TrimSpace(brand)
	name = strings.TrimSpace(name)
	switch {
	case brand == "":
		return name
	case name == "":
		return brand
	case strings.HasPrefix(strings.ToLower(name), strings.ToLower(brand)+" "):
		return name
	default:
		return brand + " " + name
	}
}

// Candidate is the partition-neutral view of an entry used by fuzzy matching.
type Candidate struct {
	Partition  Partition
	ID         string
	Name       string
	Price      float64
	ImageURL   string
	ProductURL string
}

// DetailPath returns the product detail-page reference for the candidate.
func (c Candidate) DetailPath() string {
	return "/products/" + string(c.Partition) + "/" + c.ID
}

// SwitchCandidates projects switches for matching.
func SwitchCandidates(items []Switch) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, s := range items {
		out = append(out, Candidate{PartitionSwitches, s.ID, s.FullName(), s.Price, s.ImageURL, s.ProductURL})
	}
	return out
}

// BoardCandidates projects boards for matching.
func BoardCandidates(items []Board) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, b := range items {
		out = append(out, Candidate{PartitionBoards, b.ID, b.FullName(), b.Price, b.ImageURL, b.ProductURL})
	}
	return out
}

// KeycapCandidates projects keycap sets for matching.
func KeycapCandidates(items []KeycapSet) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, k := range items {
		out = append(out, Candidate{PartitionKeycapSets, k.ID, k.FullName(), k.Price, k.ImageURL, k.ProductURL})
	}
	return out
}

// Snapshot is one request's view of the whole catalog.
type Snapshot struct {
	Switches     []Switch      `yaml:"switches" json:"switches"`
	Boards       []Board       `yaml:"boards" json:"boards"`
	KeycapSets   []KeycapSet   `yaml:"keycap_sets" json:"keycap_sets"`
	Accessories  []Accessory   `yaml:"accessories" json:"accessories"`
	Sponsorships []Sponsorship `yaml:"sponsorships" json:"sponsorships"`
}

// Counts returns the number of entries per partition.
func (s Snapshot) Counts() map[Partition]int {
	return map[Partition]int{
		PartitionSwitches:    len(s.Switches),
		PartitionBoards:      len(s.Boards),
		PartitionKeycapSets:  len(s.KeycapSets),
		PartitionAccessories: len(s.Accessories),
	}
}

// ParsePartition maps a partition name to its Partition.
func ParsePartition(name string) (Partition, error) {
	for _, p := range Partitions {
		if string(p) == strings.ToLower(strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPartition, name)
}
