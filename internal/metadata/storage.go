// Package metadata records clone provenance on libvirt domains using
// libvirt's custom XML metadata feature, so a cloned VM carries the record
// of where it came from without any external storage.
package metadata

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"gopkg.in/yaml.v3"
)

const (
	// MetadataNamespace is the XML namespace for vms metadata.
	MetadataNamespace = "http://github.com/layneYoo/vms/clone/v1"

	// MetadataKey is the element prefix used when storing metadata.
	MetadataKey = "vms-clone"
)

// LibvirtClient is the subset of *libvirt.Libvirt used for metadata.
type LibvirtClient interface {
	DomainSetMetadata(Dom libvirt.Domain, Type int32, Metadata libvirt.OptString, Key libvirt.OptString, Uri libvirt.OptString, Flags libvirt.DomainModificationImpact) error
	DomainGetMetadata(Dom libvirt.Domain, Type int32, Uri libvirt.OptString, Flags libvirt.DomainModificationImpact) (string, error)
}

// Provenance describes how a cloned domain was produced.
type Provenance struct {
	SourceName string    `yaml:"sourceName"`
	SourceUUID string    `yaml:"sourceUUID"`
	Datastore  string    `yaml:"datastore"`
	GuestIP    string    `yaml:"guestIP,omitempty"`
	ClonedAt   time.Time `yaml:"clonedAt"`
}

// cloneMetadata is the XML element stored in libvirt. The provenance is
// kept as YAML text for easy reading when inspecting the domain XML.
type cloneMetadata struct {
	XMLName xml.Name `xml:"clone"`
	Xmlns   string   `xml:"xmlns,attr"`
	YAML    string   `xml:",chardata"`
}

// Store saves the provenance to the domain's persistent metadata.
func Store(l LibvirtClient, domain libvirt.Domain, p *Provenance) error {
	yamlData, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal provenance to YAML: %w", err)
	}

	xmlData, err := xml.Marshal(cloneMetadata{
		Xmlns: MetadataNamespace,
		YAML:  string(yamlData),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata to XML: %w", err)
	}

	err = l.DomainSetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{string(xmlData)},
		libvirt.OptString{MetadataKey},
		libvirt.OptString{MetadataNamespace},
		libvirt.DomainAffectConfig,
	)
	if err != nil {
		return fmt.Errorf("failed to set libvirt domain metadata: %w", err)
	}

	return nil
}

// Load reads the provenance back from the domain's persistent metadata.
func Load(l LibvirtClient, domain libvirt.Domain) (*Provenance, error) {
	xmlStr, err := l.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{MetadataNamespace},
		libvirt.DomainAffectConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get libvirt domain metadata: %w", err)
	}

	var md cloneMetadata
	if err := xml.Unmarshal([]byte(xmlStr), &md); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata XML: %w", err)
	}

	var p Provenance
	if err := yaml.Unmarshal([]byte(md.YAML), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provenance from YAML: %w", err)
	}

	return &p, nil
}
