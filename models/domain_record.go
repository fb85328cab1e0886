package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DomainRecord 业务记录，对跟进模块不透明，只读取标识和少量展示字段
type DomainRecord map[string]interface{}

// ID 返回业务记录的标识，兼容 _id / id 两种写法
func (d DomainRecord) ID() string {
	for _, key := range []string{"_id", "id"} {
		switch v := d[key].(type) {
		case primitive.ObjectID:
			if !v.IsZero() {
				return v.Hex()
			}
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// String 读取字符串字段，非字符串的标量按默认格式转换
func (d DomainRecord) String(field string) string {
	switch v := d[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case primitive.ObjectID:
		return v.Hex()
	case fmt.Stringer:
		return v.String()
	case int, int32, int64, float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// Strings 读取字符串数组字段
func (d DomainRecord) Strings(field string) []string {
	switch v := d[field].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case primitive.A:
		return DomainRecord{field: []interface{}(v)}.Strings(field)
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Classification 提取用于筛选的分类字段
func (d DomainRecord) Classification() Classification {
	return Classification{
		WardNo:             d.String("wardNo"),
		Habitation:         d.String("habitation"),
		ProjectResponsible: d.String("projectResponsible"),
		Tags:               d.Strings("tags"),
		Category:           d.String("category"),
	}
}

// Clone 深拷贝，嵌套的 map 和数组也会复制
func (d DomainRecord) Clone() DomainRecord {
	if d == nil {
		return nil
	}
	out := make(DomainRecord, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case DomainRecord:
		return t.Clone()
	case map[string]interface{}:
		return map[string]interface{}(DomainRecord(t).Clone())
	case primitive.M:
		return primitive.M(DomainRecord(t).Clone())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case primitive.A:
		return primitive.A(cloneValue([]interface{}(t)).([]interface{}))
	case []string:
		return append([]string(nil), t...)
	case primitive.D:
		out := make(primitive.D, len(t))
		for i, e := range t {
			out[i] = primitive.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	default:
		return v
	}
}
