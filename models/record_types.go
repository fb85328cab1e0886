package models

// RecordType 业务记录类型（封闭集合，新增类型需要改代码）
type RecordType string

// Module 业务模块
type Module string

const (
	ModuleHealth        Module = "Health"
	ModuleEducation     Module = "Education"
	ModuleSocialJustice Module = "Social Justice"
)

// AllModules 所有模块
var AllModules = []Module{ModuleHealth, ModuleEducation, ModuleSocialJustice}

const (
	// 健康
	RecordTypeAdolescents     RecordType = "Adolescents"
	RecordTypeElderly         RecordType = "Elderly"
	RecordTypePregnantWomen   RecordType = "PregnantWomen"
	RecordTypeChildren        RecordType = "Children"
	RecordTypeDisabledPersons RecordType = "DisabledPersons"
	RecordTypeHealthCamps     RecordType = "HealthCamps"
	RecordTypeAnganwadi       RecordType = "Anganwadi"
	RecordTypeTBPatients      RecordType = "TBPatients"

	// 教育
	RecordTypeSchools            RecordType = "Schools"
	RecordTypeStudents           RecordType = "Students"
	RecordTypeTeachers           RecordType = "Teachers"
	RecordTypeLibraries          RecordType = "Libraries"
	RecordTypeVocationalTraining RecordType = "VocationalTraining"
	RecordTypeScholarships       RecordType = "Scholarships"
	RecordTypeAdultLiteracy      RecordType = "AdultLiteracy"

	// 社会公正
	RecordTypeLegalAid         RecordType = "LegalAid"
	RecordTypeDomesticViolence RecordType = "DomesticViolence"
	RecordTypeChildLabour      RecordType = "ChildLabour"
	RecordTypeWidowPension     RecordType = "WidowPension"
	RecordTypeSelfHelpGroups   RecordType = "SelfHelpGroups"
	RecordTypeLandRights       RecordType = "LandRights"
	RecordTypeRationCards      RecordType = "RationCards"
)

// recordTypeModules recordType -> module 的唯一映射
var recordTypeModules = map[RecordType]Module{
	RecordTypeAdolescents:     ModuleHealth,
	RecordTypeElderly:         ModuleHealth,
	RecordTypePregnantWomen:   ModuleHealth,
	RecordTypeChildren:        ModuleHealth,
	RecordTypeDisabledPersons: ModuleHealth,
	RecordTypeHealthCamps:     ModuleHealth,
	RecordTypeAnganwadi:       ModuleHealth,
	RecordTypeTBPatients:      ModuleHealth,

	RecordTypeSchools:            ModuleEducation,
	RecordTypeStudents:           ModuleEducation,
	RecordTypeTeachers:           ModuleEducation,
	RecordTypeLibraries:          ModuleEducation,
	RecordTypeVocationalTraining: ModuleEducation,
	RecordTypeScholarships:       ModuleEducation,
	RecordTypeAdultLiteracy:      ModuleEducation,

	RecordTypeLegalAid:         ModuleSocialJustice,
	RecordTypeDomesticViolence: ModuleSocialJustice,
	RecordTypeChildLabour:      ModuleSocialJustice,
	RecordTypeWidowPension:     ModuleSocialJustice,
	RecordTypeSelfHelpGroups:   ModuleSocialJustice,
	RecordTypeLandRights:       ModuleSocialJustice,
	RecordTypeRationCards:      ModuleSocialJustice,
}

// ModuleFor 返回记录类型所属模块
func ModuleFor(rt RecordType) (Module, bool) {
	m, ok := recordTypeModules[rt]
	return m, ok
}

// IsValid 记录类型是否在封闭集合内
func (rt RecordType) IsValid() bool {
	_, ok := recordTypeModules[rt]
	return ok
}

// IsValid 模块名是否合法
func (m Module) IsValid() bool {
	return m == ModuleHealth || m == ModuleEducation || m == ModuleSocialJustice
}

// AllRecordTypes 返回全部记录类型
func AllRecordTypes() []RecordType {
	types := make([]RecordType, 0, len(recordTypeModules))
	for rt := range recordTypeModules {
		types = append(types, rt)
	}
	return types
}
