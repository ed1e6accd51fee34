package core

import "signout/pkg/domain"

type (
	SignOutRecord     = domain.SignOutRecord
	AEAdmission       = domain.AEAdmission
	OperationRecord   = domain.OperationRecord
	PatientDetails    = domain.PatientDetails
	Collection        = domain.Collection
	StaffRole         = domain.StaffRole
	Summary           = domain.Summary
	SummaryRow        = domain.SummaryRow
	CollectionSummary = domain.CollectionSummary
	KeyValueStore     = domain.KeyValueStore
	NotFoundError     = domain.NotFoundError
	ValidationError   = domain.ValidationError
)

const (
	CollectionAEAdmissions       = domain.CollectionAEAdmissions
	CollectionHduOrIcuAdmissions = domain.CollectionHduOrIcuAdmissions
	CollectionAEDischarges       = domain.CollectionAEDischarges
	CollectionAEConsults         = domain.CollectionAEConsults
	CollectionReferrals          = domain.CollectionReferrals
	CollectionInHouseConsults    = domain.CollectionInHouseConsults
	CollectionFloorIssues        = domain.CollectionFloorIssues

	OperationsCollection = domain.OperationsCollection

	RoleConsultant = domain.RoleConsultant
	RoleSHO        = domain.RoleSHO
	RoleRegistrar  = domain.RoleRegistrar
)
