package service

import (
	"fmt"

	"github.com/BerniceZTT/welfare_end/models"
)

// NamingRule 从业务记录生成展示名称
type NamingRule func(doc models.DomainRecord) string

// nameRule 依次取 fields 中第一个非空字段；都为空时用 label + 编码字段 + 记录ID 拼接
func nameRule(label, codeField string, fields ...string) NamingRule {
	return func(doc models.DomainRecord) string {
		for _, f := range fields {
			if v := doc.String(f); v != "" {
				return v
			}
		}
		id := shortID(doc.ID())
		if codeField != "" {
			if code := doc.String(codeField); code != "" {
				if id == "" {
					return fmt.Sprintf("%s %s", label, code)
				}
				return fmt.Sprintf("%s %s (%s)", label, code, id)
			}
		}
		return fmt.Sprintf("%s #%s", label, id)
	}
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[len(id)-6:]
	}
	return id
}

// 每种记录类型恰好一条命名规则
var namingRules = map[models.RecordType]NamingRule{
	models.RecordTypeAdolescents:     nameRule("Adolescent", "registrationNo", "name", "fullName"),
	models.RecordTypeElderly:         nameRule("Elderly", "elderlyId", "name", "fullName"),
	models.RecordTypePregnantWomen:   nameRule("Pregnant Woman", "mctsId", "name", "womanName"),
	models.RecordTypeChildren:        nameRule("Child", "anganwadiCode", "childName", "name"),
	models.RecordTypeDisabledPersons: nameRule("Disabled Person", "udidNo", "name", "fullName"),
	models.RecordTypeHealthCamps:     nameRule("Health Camp", "campLocation", "campName", "name"),
	models.RecordTypeAnganwadi:       nameRule("Anganwadi", "centreCode", "centreName", "name"),
	models.RecordTypeTBPatients:      nameRule("TB Patient", "nikshayId", "patientName", "name"),

	models.RecordTypeSchools:            nameRule("School", "udiseCode", "schoolName", "name"),
	models.RecordTypeStudents:           nameRule("Student", "rollNo", "studentName", "name"),
	models.RecordTypeTeachers:           nameRule("Teacher", "employeeId", "teacherName", "name"),
	models.RecordTypeLibraries:          nameRule("Library", "libraryCode", "libraryName", "name"),
	models.RecordTypeVocationalTraining: nameRule("Training Batch", "batchCode", "programName", "courseName", "name"),
	models.RecordTypeScholarships:       nameRule("Scholarship", "applicationNo", "beneficiaryName", "studentName", "name"),
	models.RecordTypeAdultLiteracy:      nameRule("Literacy Learner", "centreCode", "learnerName", "name"),

	models.RecordTypeLegalAid: nameRule("Legal Aid", "caseNumber", "clientName", "name"),
	// 当事人信息敏感，只用案件编号
	models.RecordTypeDomesticViolence: nameRule("DV Case", "caseNumber"),
	models.RecordTypeChildLabour:      nameRule("Child Labour Case", "caseNumber", "childName", "name"),
	models.RecordTypeWidowPension:     nameRule("Widow Pension", "pensionId", "beneficiaryName", "name"),
	models.RecordTypeSelfHelpGroups:   nameRule("SHG", "shgCode", "groupName", "name"),
	models.RecordTypeLandRights:       nameRule("Land Rights", "surveyNo", "applicantName", "name"),
	models.RecordTypeRationCards:      nameRule("Ration Card", "rationCardNo", "headOfFamily", "name"),
}

// NamingRuleFor 查找记录类型的命名规则
func NamingRuleFor(rt models.RecordType) (NamingRule, bool) {
	rule, ok := namingRules[rt]
	return rule, ok
}
