package x509util

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// SubjectBuilder composes a certificate Subject distinguished name from the
// CN, O, OU, L, ST, C, E and organizationIdentifier attributes. When encoded,
// the RDNs follow crypto/x509/pkix's fixed order (C, ST, L, O, OU, CN)
// followed by E and organizationIdentifier; they are not emitted CN first.
type SubjectBuilder struct {
	commonName             string
	organization           string
	organizationalUnit     string
	locality               string
	province                string
	country                 string
	email                   string
	organizationIdentifier  string
}

// NewSubjectBuilder returns an empty SubjectBuilder.
func NewSubjectBuilder() *SubjectBuilder {
	return &SubjectBuilder{}
}

func (b *SubjectBuilder) CommonName(cn string) *SubjectBuilder {
	b.commonName = cn
	return b
}

func (b *SubjectBuilder) Organization(o string) *SubjectBuilder {
	b.organization = o
	return b
}

func (b *SubjectBuilder) OrganizationalUnit(ou string) *SubjectBuilder {
	b.organizationalUnit = ou
	return b
}

func (b *SubjectBuilder) Locality(l string) *SubjectBuilder {
	b.locality = l
	return b
}

func (b *SubjectBuilder) Province(st string) *SubjectBuilder {
	b.province = st
	return b
}

func (b *SubjectBuilder) Country(c string) *SubjectBuilder {
	b.country = c
	return b
}

func (b *SubjectBuilder) Email(e string) *SubjectBuilder {
	b.email = e
	return b
}

// OrganizationIdentifier sets the CA/Browser Forum organization-identifier
// attribute (OID 2.23.140.3.1): registrationScheme(3) + country(2) +
// "-" + register + "-" + authorization-number, e.g. "PSDGR-BOG-123456".
func (b *SubjectBuilder) OrganizationIdentifier(v string) *SubjectBuilder {
	b.organizationIdentifier = v
	return b
}

// Build returns the composed pkix.Name. The CommonName field and standard
// RDN slices are populated directly; organizationIdentifier is carried in
// ExtraNames since crypto/x509/pkix.Name has no first-class field for it.
func (b *SubjectBuilder) Build() (pkix.Name, error) {
	if b.commonName == "" {
		return pkix.Name{}, fmt.Errorf("subject: common name is required")
	}
	if len(b.commonName) > 64 {
		return pkix.Name{}, fmt.Errorf("subject: common name exceeds 64 characters")
	}
	if len(b.country) != 0 && len(b.country) != 2 {
		return pkix.Name{}, fmt.Errorf("subject: country must be an ISO-3166 alpha-2 code")
	}

	name := pkix.Name{CommonName: b.commonName}
	if b.organization != "" {
		name.Organization = []string{b.organization}
	}
	if b.organizationalUnit != "" {
		name.OrganizationalUnit = []string{b.organizationalUnit}
	}
	if b.locality != "" {
		name.Locality = []string{b.locality}
	}
	if b.province != "" {
		name.Province = []string{b.province}
	}
	if b.country != "" {
		name.Country = []string{b.country}
	}
	if b.email != "" {
		name.ExtraNames = append(name.ExtraNames, pkix.AttributeTypeAndValue{
			Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1},
			Value: b.email,
		})
	}
	if b.organizationIdentifier != "" {
		name.ExtraNames = append(name.ExtraNames, pkix.AttributeTypeAndValue{
			Type:  OIDOrganizationIdentifier,
			Value: b.organizationIdentifier,
		})
	}

	return name, nil
}

// OIDOrganizationIdentifier is the CA/Browser Forum organization-identifier
// Subject DN attribute (EVG Appendix A).
var OIDOrganizationIdentifier = asn1.ObjectIdentifier{2, 23, 140, 3, 1}
