// Package x509util builds RFC 5280 certificate extensions and subject
// distinguished names for the qualified-certificate manager in internal/camgr.
package x509util

import "encoding/asn1"

// RFC 5280 extension OIDs.
var (
	OIDExtKeyUsage               = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtExtKeyUsage            = asn1.ObjectIdentifier{2, 5, 29, 37}
	OIDExtBasicConstraints       = asn1.ObjectIdentifier{2, 5, 29, 19}
	OIDExtSubjectKeyId           = asn1.ObjectIdentifier{2, 5, 29, 14}
	OIDExtAuthorityKeyId         = asn1.ObjectIdentifier{2, 5, 29, 35}
	OIDExtCRLDistributionPoints  = asn1.ObjectIdentifier{2, 5, 29, 31}
	OIDExtAuthorityInfoAccess    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}
	OIDExtCertificatePolicies    = asn1.ObjectIdentifier{2, 5, 29, 32}
)

// Access-method OIDs for AuthorityInformationAccess.
var (
	OIDAccessMethodCAIssuers = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 2}
	OIDAccessMethodOCSP      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}
)

// OIDEqual compares two OIDs for equality.
func OIDEqual(a, b asn1.ObjectIdentifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
