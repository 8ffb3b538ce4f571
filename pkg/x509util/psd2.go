package x509util

import (
	"encoding/asn1"
	"fmt"
)

// PSD2Role identifies a PSD2 role a payment service provider may carry.
type PSD2Role string

const (
	PSD2RoleASPSP PSD2Role = "PSP_AS"
	PSD2RolePISP  PSD2Role = "PSP_PI"
	PSD2RoleAISP  PSD2Role = "PSP_AI"
	PSD2RolePIISP PSD2Role = "PSP_IC"
)

func (r PSD2Role) oid() (asn1.ObjectIdentifier, error) {
	switch r {
	case PSD2RoleASPSP:
		return OIDPSD2RoleASPSP, nil
	case PSD2RolePISP:
		return OIDPSD2RolePISP, nil
	case PSD2RoleAISP:
		return OIDPSD2RoleAISP, nil
	case PSD2RolePIISP:
		return OIDPSD2RolePIISP, nil
	default:
		return nil, fmt.Errorf("invalid PSD2 role: %q", r)
	}
}

// roleOfPSP is the ASN.1 structure for a single PSD2 role.
//
//	RoleOfPSP ::= SEQUENCE {
//	  roleOfPspOid  OBJECT IDENTIFIER,
//	  roleOfPspName UTF8String
//	}
type roleOfPSP struct {
	RoleOID  asn1.ObjectIdentifier
	RoleName string `asn1:"utf8"`
}

// psd2QcType is the ASN.1 structure for the PSD2QcType statement info.
//
//	PSD2QcType ::= SEQUENCE {
//	  rolesOfPSP SEQUENCE OF RoleOfPSP,
//	  nCAName    UTF8String,
//	  nCAId      UTF8String
//	}
type psd2QcType struct {
	RolesOfPSP []roleOfPSP
	NCAName    string `asn1:"utf8"`
	NCAId      string `asn1:"utf8"`
}

// monetaryValue is the ASN.1 structure for the QcLimitValue statement info.
//
//	MonetaryValue ::= SEQUENCE {
//	  currency Iso4217CurrencyCode,
//	  amount     INTEGER,
//	  exponent   INTEGER
//	}
type monetaryValue struct {
	Currency string `asn1:"printable"`
	Amount   int
	Exponent int
}

// AddQcLimitValue adds the QcLimitValue statement (0.4.0.1862.1.2), stating a
// monetary transaction limit associated with the certificate. amount is
// expressed in whole units of currency (exponent fixed at 0).
func (b *QCStatementsBuilder) AddQcLimitValue(currency string, amount int) error {
	if len(currency) != 3 {
		return fmt.Errorf("QcLimitValue currency must be a 3-letter ISO 4217 code, got %q", currency)
	}

	infoBytes, err := asn1.Marshal(monetaryValue{Currency: currency, Amount: amount, Exponent: 0})
	if err != nil {
		return fmt.Errorf("failed to marshal QcLimitValue: %w", err)
	}

	b.statements = append(b.statements, qcStatement{
		StatementID:   OIDQcLimitValue,
		StatementInfo: asn1.RawValue{FullBytes: infoBytes},
	})
	return nil
}

// AddPSD2 adds the ETSI TS 119 495 PSD2 QcStatement (0.4.0.19495.2), carrying
// the PSP's roles and National Competent Authority identity.
func (b *QCStatementsBuilder) AddPSD2(roles []PSD2Role, ncaName, ncaID string) error {
	if len(roles) == 0 {
		return fmt.Errorf("PSD2 statement requires at least one role")
	}
	if ncaName == "" || ncaID == "" {
		return fmt.Errorf("PSD2 statement requires both NCA name and NCA id")
	}

	roleSeq := make([]roleOfPSP, 0, len(roles))
	for _, r := range roles {
		oid, err := r.oid()
		if err != nil {
			return err
		}
		roleSeq = append(roleSeq, roleOfPSP{RoleOID: oid, RoleName: string(r)})
	}

	infoBytes, err := asn1.Marshal(psd2QcType{RolesOfPSP: roleSeq, NCAName: ncaName, NCAId: ncaID})
	if err != nil {
		return fmt.Errorf("failed to marshal PSD2QcType: %w", err)
	}

	b.statements = append(b.statements, qcStatement{
		StatementID:   OIDPSD2QcStatement,
		StatementInfo: asn1.RawValue{FullBytes: infoBytes},
	})
	return nil
}

// PSD2Info holds decoded PSD2QcType information.
type PSD2Info struct {
	Roles   []PSD2Role
	NCAName string
	NCAId   string
}

// DecodePSD2 parses a PSD2 QcStatement embedded in a decoded QCStatements
// extension. Returns nil if the statement is absent.
func DecodePSD2(ext asn1.RawValue) (*PSD2Info, error) {
	if len(ext.FullBytes) == 0 {
		return nil, nil
	}
	var raw psd2QcType
	if _, err := asn1.Unmarshal(ext.FullBytes, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse PSD2QcType: %w", err)
	}

	info := &PSD2Info{NCAName: raw.NCAName, NCAId: raw.NCAId}
	for _, role := range raw.RolesOfPSP {
		switch {
		case OIDEqual(role.RoleOID, OIDPSD2RoleASPSP):
			info.Roles = append(info.Roles, PSD2RoleASPSP)
		case OIDEqual(role.RoleOID, OIDPSD2RolePISP):
			info.Roles = append(info.Roles, PSD2RolePISP)
		case OIDEqual(role.RoleOID, OIDPSD2RoleAISP):
			info.Roles = append(info.Roles, PSD2RoleAISP)
		case OIDEqual(role.RoleOID, OIDPSD2RolePIISP):
			info.Roles = append(info.Roles, PSD2RolePIISP)
		}
	}
	return info, nil
}
