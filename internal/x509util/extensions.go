package x509util

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// generalNameURI and distributionPoint model the minimal CRLDistributionPoints
// shape this profile needs: a single fullName URI per distribution point.
type generalNameURI struct {
	// [6] IA5String, context-tagged as one of GeneralName's choices.
	URI string `asn1:"tag:6,ia5"`
}

type distributionPointName struct {
	FullName []generalNameURI `asn1:"optional,tag:0"`
}

type distributionPoint struct {
	DistributionPoint distributionPointName `asn1:"optional,tag:0"`
}

// BuildCRLDistributionPoints encodes the CRLDistributionPoints extension
// (2.5.29.31) carrying a single URI distribution point.
func BuildCRLDistributionPoints(uri string) (pkix.Extension, error) {
	if uri == "" {
		return pkix.Extension{}, fmt.Errorf("CRLDistributionPoints: uri is required")
	}

	points := []distributionPoint{{
		DistributionPoint: distributionPointName{
			FullName: []generalNameURI{{URI: uri}},
		},
	}}

	value, err := asn1.Marshal(points)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("marshal CRLDistributionPoints: %w", err)
	}

	return pkix.Extension{Id: OIDExtCRLDistributionPoints, Critical: false, Value: value}, nil
}

// accessDescription is AuthorityInformationAccess's repeated element.
type accessDescription struct {
	Method   asn1.ObjectIdentifier
	Location generalNameURI
}

// AIAEntry names one AuthorityInformationAccess access method and its URI.
type AIAEntry struct {
	Method   asn1.ObjectIdentifier // OIDAccessMethodCAIssuers or OIDAccessMethodOCSP
	Location string
}

// BuildAuthorityInfoAccess encodes the AuthorityInformationAccess extension
// (1.3.6.1.5.5.7.1.1).
func BuildAuthorityInfoAccess(entries []AIAEntry) (pkix.Extension, error) {
	if len(entries) == 0 {
		return pkix.Extension{}, fmt.Errorf("AuthorityInformationAccess: at least one entry is required")
	}

	descs := make([]accessDescription, 0, len(entries))
	for _, e := range entries {
		if e.Location == "" {
			return pkix.Extension{}, fmt.Errorf("AuthorityInformationAccess: location is required")
		}
		descs = append(descs, accessDescription{Method: e.Method, Location: generalNameURI{URI: e.Location}})
	}

	value, err := asn1.Marshal(descs)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("marshal AuthorityInformationAccess: %w", err)
	}

	return pkix.Extension{Id: OIDExtAuthorityInfoAccess, Critical: false, Value: value}, nil
}

// policyInformation is CertificatePolicies's repeated element. Qualifiers
// are omitted — this profile only needs bare policy OIDs.
type policyInformation struct {
	PolicyIdentifier asn1.ObjectIdentifier
}

// BuildCertificatePolicies encodes the CertificatePolicies extension
// (2.5.29.32) listing the given policy OIDs with no qualifiers.
func BuildCertificatePolicies(oids []asn1.ObjectIdentifier) (pkix.Extension, error) {
	if len(oids) == 0 {
		return pkix.Extension{}, fmt.Errorf("CertificatePolicies: at least one policy OID is required")
	}

	infos := make([]policyInformation, 0, len(oids))
	for _, oid := range oids {
		infos = append(infos, policyInformation{PolicyIdentifier: oid})
	}

	value, err := asn1.Marshal(infos)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("marshal CertificatePolicies: %w", err)
	}

	return pkix.Extension{Id: OIDExtCertificatePolicies, Critical: false, Value: value}, nil
}
