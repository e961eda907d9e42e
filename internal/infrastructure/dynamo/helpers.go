package dynamo

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// keyOf builds the key of ix. An empty sort key addresses a hash-only key.
func keyOf(ix Index, pk, sk string) map[string]types.AttributeValue {
	if sk == "" || ix.SortKey == "" {
		return strKey(ix.PartitionKey, pk)
	}
	return compositeKey(ix.PartitionKey, pk, ix.SortKey, sk)
}

// keyFromItem extracts the primary key attributes of ix from a marshalled item.
func keyFromItem(ix Index, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	key := map[string]types.AttributeValue{}
	for _, name := range []string{ix.PartitionKey, ix.SortKey} {
		if name == "" {
			continue
		}
		av, ok := item[name]
		if !ok {
			return nil, fmt.Errorf("item has no %s", name)
		}
		key[name] = av
	}
	return key, nil
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts marshalled fields into "SET #f0 = :v0 REMOVE #f1".
// Names are processed in sorted order so the expression is deterministic. A
// field listed in remove is never also set.
func buildUpdateExpr(set map[string]types.AttributeValue, remove []string) (updateExpr, error) {
	ue := updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}

	remove = slices.Clone(remove)
	sort.Strings(remove)
	remove = slices.Compact(remove)

	setNames := make([]string, 0, len(set))
	for k := range set {
		if !slices.Contains(remove, k) {
			setNames = append(setNames, k)
		}
	}
	sort.Strings(setNames)

	if len(setNames) == 0 && len(remove) == 0 {
		return updateExpr{}, errors.New("no fields to update")
	}

	i := 0
	var sets, removes []string
	for _, k := range setNames {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		ue.Names[nameKey] = k
		ue.Values[valueKey] = set[k]
		sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}
	for _, k := range remove {
		nameKey := fmt.Sprintf("#f%d", i)
		ue.Names[nameKey] = k
		removes = append(removes, nameKey)
		i++
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expr = strings.Join(clauses, " ")
	return ue, nil
}

// mergeNames returns nil for an empty result; DynamoDB rejects empty expression maps.
func mergeNames(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
