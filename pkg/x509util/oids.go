// Package x509util provides QCStatements extension support for eIDAS qualified certificates.
// Implements RFC 3739 and ETSI EN 319 412-5.
package x509util

import "encoding/asn1"

// Standard X.509 extension OIDs used by the QCStatements extension itself.
var (
	// OIDQCStatements is the QualifiedCertificateStatements extension (RFC 3739).
	OIDQCStatements = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 3}
)

// ETSI EN 319 412-5 QCStatement OIDs.
var (
	OIDQcCompliance      = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 1}
	OIDQcLimitValue      = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 2}
	OIDQcRetentionPeriod = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 3}
	OIDQcSSCD            = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 4}
	OIDQcPDS             = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 5}
	OIDQcType            = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6}
	OIDQcCCLegislation   = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 7}

	OIDQcTypeESign = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6, 1}
	OIDQcTypeESeal = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6, 2}
	OIDQcTypeWeb   = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6, 3}
)

// ETSI TS 119 495 PSD2 QCStatement OID and role OIDs.
var (
	// OIDPSD2QcStatement carries the PSD2QcType statement info.
	OIDPSD2QcStatement = asn1.ObjectIdentifier{0, 4, 0, 19495, 2}

	// PSD2 role-of-PSP OIDs, arc 0.4.0.19495.1.
	OIDPSD2RoleASPSP = asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 1}
	OIDPSD2RolePISP  = asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 2}
	OIDPSD2RoleAISP  = asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 3}
	OIDPSD2RolePIISP = asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 4}
)

// OIDOrganizationIdentifier is the CA/Browser Forum organization-identifier
// Subject DN attribute (not an extension).
var OIDOrganizationIdentifier = asn1.ObjectIdentifier{2, 23, 140, 3, 1}

// ETSI EN 319 411-2 qualified-certificate policy OIDs, referenced from the
// CertificatePolicies extension according to the certificate's QcType.
var (
	OIDPolicyQCPNatural     = asn1.ObjectIdentifier{0, 4, 0, 194112, 1, 0}
	OIDPolicyQCPNaturalQSCD = asn1.ObjectIdentifier{0, 4, 0, 194112, 1, 1}
	OIDPolicyQCPLegal       = asn1.ObjectIdentifier{0, 4, 0, 194112, 1, 2}
	OIDPolicyQCPLegalQSCD   = asn1.ObjectIdentifier{0, 4, 0, 194112, 1, 3}
	OIDPolicyQCPWeb         = asn1.ObjectIdentifier{0, 4, 0, 194112, 1, 4}
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

// OIDToString converts an OID to its dotted string representation.
func OIDToString(oid asn1.ObjectIdentifier) string {
	return oid.String()
}
