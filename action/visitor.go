package action

// Visitor has one method per action kind.
type Visitor interface {
	VisitDna(*Dna) error
	VisitAgentValidationPkg(*AgentValidationPkg) error
	VisitInitZomesComplete(*InitZomesComplete) error
	VisitOpenChain(*OpenChain) error
	VisitCloseChain(*CloseChain) error
	VisitCreate(*Create) error
	VisitUpdate(*Update) error
	VisitDelete(*Delete) error
	VisitCreateLink(*CreateLink) error
	VisitDeleteLink(*DeleteLink) error
}
