package models

import "fmt"

// ActorSystem помечает переходы, которые делает сам сервис (sweeper,
// обратный переход при отказе перевозчика), а не пользователь.
const ActorSystem UserRole = "system"

type cargoEdge struct {
	From CargoStatus
	To   CargoStatus
}

// cargoTransitions encodes the whole cargo workflow as data:
// (from, to) → the roles allowed to request it. Ownership and
// assignment preconditions on top of the role are checked by the
// cargo service, not here.
var cargoTransitions = map[cargoEdge][]UserRole{
	{CargoPendingApproval, CargoManagerApproved}: {RoleManager},
	{CargoPendingApproval, CargoRejected}:        {RoleManager},

	{CargoDraft, CargoPending}:           {RoleCargoOwner, RoleLogisticsCompany, RoleManager},
	{CargoManagerApproved, CargoAssigned}: {RoleStudent},
	{CargoPending, CargoAssigned}:         {RoleStudent},

	{CargoAssigned, CargoInProgress}: {RoleCarrier},
	{CargoAssigned, CargoPending}:    {ActorSystem},
	{CargoInProgress, CargoCompleted}: {RoleCarrier},

	{CargoDraft, CargoCancelled}:      {RoleCargoOwner, RoleLogisticsCompany, RoleManager, RoleStudent},
	{CargoPending, CargoCancelled}:    {RoleCargoOwner, RoleLogisticsCompany, RoleManager, RoleStudent},
	{CargoAssigned, CargoCancelled}:   {RoleCargoOwner, RoleLogisticsCompany, RoleManager, RoleStudent},
	{CargoInProgress, CargoCancelled}: {RoleCargoOwner, RoleLogisticsCompany, RoleManager, RoleStudent},

	{CargoCancelled, CargoDraft}: {RoleCargoOwner, RoleLogisticsCompany},
	{CargoExpired, CargoDraft}:   {RoleCargoOwner, RoleLogisticsCompany},

	{CargoPending, CargoExpired}:         {ActorSystem},
	{CargoManagerApproved, CargoExpired}: {ActorSystem},
}

// CargoTransitionAllowed reports whether role may move a cargo from→to.
// from==to is a no-op and always allowed.
func CargoTransitionAllowed(from, to CargoStatus, role UserRole) bool {
	if from == to {
		return true
	}
	for _, r := range cargoTransitions[cargoEdge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// CargoTransitionExists reports whether from→to is in the workflow for
// any role at all.
func CargoTransitionExists(from, to CargoStatus) bool {
	if from == to {
		return true
	}
	_, ok := cargoTransitions[cargoEdge{from, to}]
	return ok
}

type requestEdge struct {
	From RequestStatus
	To   RequestStatus
}

var requestTransitions = map[requestEdge][]UserRole{
	{RequestPending, RequestCancelled}:  {RoleCarrier},
	{RequestPending, RequestAssigned}:   {RoleStudent},
	{RequestAssigned, RequestAccepted}:  {RoleCarrier},
	{RequestAssigned, RequestRejected}:  {RoleCarrier},
	{RequestAccepted, RequestCompleted}: {RoleCarrier},
	{RequestAccepted, RequestCancelled}: {RoleCarrier},
	{RequestRejected, RequestPending}:   {RoleCarrier}, // повторный выход на рынок
	{RequestCancelled, RequestPending}:  {RoleCarrier},
}

func RequestTransitionAllowed(from, to RequestStatus, role UserRole) bool {
	if from == to {
		return true
	}
	for _, r := range requestTransitions[requestEdge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

func RequestTransitionExists(from, to RequestStatus) bool {
	if from == to {
		return true
	}
	_, ok := requestTransitions[requestEdge{from, to}]
	return ok
}

// InvalidTransitionError carries both sides of a refused status change
// so the API can explain the refusal without guessing.
type InvalidTransitionError struct {
	Entity    string
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot transition from %s to %s", e.Entity, e.Current, e.Requested)
}
