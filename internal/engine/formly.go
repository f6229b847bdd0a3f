package engine

import (
	"fmt"
	"strings"

	"metaform/internal/schema"
	"metaform/internal/schema/expr"
)

// EngineFormly is the name of the built-in ngx-formly adapter.
const EngineFormly = "formly"

// formlyMapping describes how one schema field type renders in formly.
type formlyMapping struct {
	formlyType string
	inputType  string // props.type for "input"-family widgets
}

var formlyTypes = map[schema.FieldType]formlyMapping{
	schema.TypeText:         {formlyType: "input"},
	schema.TypeTextarea:     {formlyType: "textarea"},
	schema.TypeRichText:     {formlyType: "textarea"},
	schema.TypeNumber:       {formlyType: "input", inputType: "number"},
	schema.TypeCurrency:     {formlyType: "input", inputType: "number"},
	schema.TypePercent:      {formlyType: "input", inputType: "number"},
	schema.TypeCheckbox:     {formlyType: "checkbox"},
	schema.TypeToggle:       {formlyType: "toggle"},
	schema.TypeSelect:       {formlyType: "select"},
	schema.TypeMultiSelect:  {formlyType: "select"},
	schema.TypeRadio:        {formlyType: "radio"},
	schema.TypeAutocomplete: {formlyType: "select"},
	schema.TypeDate:         {formlyType: "input", inputType: "date"},
	schema.TypeDateTime:     {formlyType: "input", inputType: "datetime-local"},
	schema.TypeTime:         {formlyType: "input", inputType: "time"},
	schema.TypeDateRange:    {formlyType: "input", inputType: "date"},
	schema.TypeEmail:        {formlyType: "input", inputType: "email"},
	schema.TypePhone:        {formlyType: "input", inputType: "tel"},
	schema.TypeURL:          {formlyType: "input", inputType: "url"},
	schema.TypePassword:     {formlyType: "input", inputType: "password"},
	schema.TypeFile:         {formlyType: "file"},
	schema.TypeImage:        {formlyType: "file"},
	schema.TypeColor:        {formlyType: "input", inputType: "color"},
	schema.TypeRating:       {formlyType: "rating"},
	schema.TypeJSON:         {formlyType: "textarea"},
	schema.TypeHidden:       {formlyType: "input", inputType: "hidden"},
	schema.TypeLabel:        {formlyType: "display"},
	schema.TypeLink:         {formlyType: "display"},
	schema.TypeDivider:      {formlyType: "divider"},
	schema.TypeHeading:      {formlyType: "heading"},
}

// degradedTypes render with a formly widget that loses part of the schema
// semantics; conversion succeeds but reports the loss.
var degradedTypes = map[schema.FieldType]string{
	schema.TypeRichText:  "rich text renders as a plain textarea",
	schema.TypeDateRange: "date range renders as a single date input",
	schema.TypeJSON:      "json editor renders as a plain textarea",
}

// FormlyAdapter converts views into ngx-formly field configurations.
type FormlyAdapter struct{}

func NewFormlyAdapter() *FormlyAdapter { return &FormlyAdapter{} }

func (a *FormlyAdapter) Name() string { return EngineFormly }

// ConvertField maps one field to a formly field config. Unknown field types
// degrade to a plain input with a warning.
func (a *FormlyAdapter) ConvertField(f *schema.FormFieldSchema) FieldConversion {
	conv := FieldConversion{FullyConverted: true}

	mapping, known := formlyTypes[f.Type]
	if !known {
		mapping = formlyMapping{formlyType: "input"}
		conv.Warnings = append(conv.Warnings, fmt.Sprintf("unknown field type %q rendered as input", f.Type))
		conv.FullyConverted = false
	}
	if note, degraded := degradedTypes[f.Type]; degraded {
		conv.Warnings = append(conv.Warnings, note)
		conv.FullyConverted = false
	}

	out := map[string]any{
		"key":  f.Field,
		"type": mapping.formlyType,
	}
	if f.DefaultValue != nil {
		out["defaultValue"] = f.DefaultValue
	}
	if f.Hidden || f.Type == schema.TypeHidden {
		out["hide"] = true
	}

	props := a.buildProps(f, mapping)
	if len(props) > 0 {
		out["props"] = props
	}
	if messages := validationMessages(f); len(messages) > 0 {
		out["validation"] = map[string]any{"messages": messages}
	}

	expressions, exprWarnings := a.buildExpressions(f)
	if len(expressions) > 0 {
		out["expressions"] = expressions
	}
	if len(exprWarnings) > 0 {
		conv.Warnings = append(conv.Warnings, exprWarnings...)
		conv.FullyConverted = false
	}
	if f.Layout != nil && f.Layout.ColSpan > 0 {
		out["className"] = fmt.Sprintf("col-span-%d", f.Layout.ColSpan)
	}

	conv.Field = out
	return conv
}

func (a *FormlyAdapter) buildProps(f *schema.FormFieldSchema, mapping formlyMapping) map[string]any {
	props := map[string]any{}
	if f.Label != "" {
		props["label"] = f.Label
	}
	if mapping.inputType != "" {
		props["type"] = mapping.inputType
	}
	if f.Placeholder != "" {
		props["placeholder"] = f.Placeholder
	}
	if f.Description != "" {
		props["description"] = f.Description
	}
	if f.Required {
		props["required"] = true
	}
	if f.Readonly {
		props["readonly"] = true
	}
	if f.Disabled {
		props["disabled"] = true
	}
	if f.MinLength != nil {
		props["minLength"] = *f.MinLength
	}
	if f.MaxLength != nil {
		props["maxLength"] = *f.MaxLength
	}
	if f.Min != nil {
		props["min"] = *f.Min
	}
	if f.Max != nil {
		props["max"] = *f.Max
	}
	if f.Step != nil {
		props["step"] = *f.Step
	}
	if f.Pattern != "" {
		props["pattern"] = f.Pattern
	}
	if f.Rows > 0 {
		props["rows"] = f.Rows
	}
	if f.Accept != "" {
		props["accept"] = f.Accept
	}
	if f.Multiple || f.Type == schema.TypeMultiSelect {
		props["multiple"] = true
	}
	if f.MaxRating > 0 {
		props["maxRating"] = f.MaxRating
	}
	if len(f.Options) > 0 {
		options := make([]map[string]any, 0, len(f.Options))
		for _, opt := range f.Options {
			o := map[string]any{"value": opt.Value, "label": opt.Label}
			if opt.Disabled {
				o["disabled"] = true
			}
			options = append(options, o)
		}
		props["options"] = options
	}
	return props
}

// validationMessages produces one message per applicable constraint. Built-in
// constraints get a synthesized default text; an explicit rule message for
// the same constraint wins.
func validationMessages(f *schema.FormFieldSchema) map[string]any {
	messages := map[string]any{}

	name := f.Label
	if name == "" {
		name = f.Field
	}
	if f.Required {
		messages["required"] = fmt.Sprintf("%s is required", name)
	}
	if f.MinLength != nil {
		messages["minLength"] = fmt.Sprintf("Minimum length is %d", *f.MinLength)
	}
	if f.MaxLength != nil {
		messages["maxLength"] = fmt.Sprintf("Maximum length is %d", *f.MaxLength)
	}
	if f.Min != nil {
		messages["min"] = fmt.Sprintf("Minimum value is %v", *f.Min)
	}
	if f.Max != nil {
		messages["max"] = fmt.Sprintf("Maximum value is %v", *f.Max)
	}
	if f.Pattern != "" {
		messages["pattern"] = fmt.Sprintf("%s has an invalid format", name)
	}

	for _, rule := range f.Validations {
		if rule.Type == "" || rule.Message == "" {
			continue
		}
		messages[rule.Type] = rule.Message
	}
	return messages
}

// buildExpressions maps the three conditional expressions onto formly's
// expression slots: visibleWhen negated into "hide", enabledWhen negated
// into "props.disabled", requiredWhen straight into "props.required".
func (a *FormlyAdapter) buildExpressions(f *schema.FormFieldSchema) (map[string]any, []string) {
	expressions := map[string]any{}
	var warnings []string

	add := func(slot string, cond *schema.ConditionalExpression, negate bool) {
		if cond.IsZero() {
			return
		}
		js, err := conditionToJS(cond.Expression, negate)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s expression not converted: %v", slot, err))
			return
		}
		expressions[slot] = js
	}

	add("hide", f.VisibleWhen, true)
	add("props.disabled", f.EnabledWhen, true)
	add("props.required", f.RequiredWhen, false)
	return expressions, warnings
}

// conditionToJS renders a parsed comparator condition as a formly model
// expression, e.g. `status == 'active'` becomes `model.status === 'active'`.
func conditionToJS(source string, negate bool) (string, error) {
	cond, err := expr.ParseCondition(source)
	if err != nil {
		return "", err
	}
	op := string(cond.Op)
	switch cond.Op {
	case expr.OpEq:
		op = "==="
	case expr.OpNe:
		op = "!=="
	}
	js := fmt.Sprintf("model.%s %s %s", cond.Field, op, literalToJS(cond.Value))
	if negate {
		js = "!(" + js + ")"
	}
	return js, nil
}

func literalToJS(lit expr.Literal) string {
	switch lit.Kind {
	case expr.LitNull:
		return "null"
	case expr.LitBool:
		if lit.Bool {
			return "true"
		}
		return "false"
	case expr.LitString:
		return "'" + strings.ReplaceAll(lit.Str, "'", "\\'") + "'"
	default:
		return lit.Num.String()
	}
}

// ConvertForm converts a whole view. Grouped and tabbed fields nest into
// fieldGroup containers; ungrouped fields follow the containers in view
// order.
func (a *FormlyAdapter) ConvertForm(view *schema.FormViewSchema) FormConversion {
	conv := FormConversion{}

	// Behavior flags with no slot in a formly config belong to the host
	// application; report them instead of dropping them silently.
	if view.AutoSave {
		conv.UnsupportedFeatures = append(conv.UnsupportedFeatures, "autoSave: no auto-save hook in formly, the host must implement it")
	}
	if view.WarnOnUnsavedChanges {
		conv.UnsupportedFeatures = append(conv.UnsupportedFeatures, "warnOnUnsavedChanges: dirty-state guard must come from the host router")
	}
	if view.ScrollToError {
		conv.UnsupportedFeatures = append(conv.UnsupportedFeatures, "scrollToError: scrolling to the first invalid control is host behavior")
	}

	byKey := make(map[string]map[string]any, len(view.Fields))
	placed := make(map[string]bool, len(view.Fields))
	conv.Fields = make([]map[string]any, 0, len(view.Fields))
	for i := range view.Fields {
		f := &view.Fields[i]
		fc := a.ConvertField(f)
		for _, w := range fc.Warnings {
			conv.Warnings = append(conv.Warnings, f.Field+": "+w)
		}
		if view.ValidateOnBlur {
			fc.Field["modelOptions"] = map[string]any{"updateOn": "blur"}
		}
		byKey[f.Field] = fc.Field
		conv.Fields = append(conv.Fields, fc.Field)
	}

	var layout []any

	collect := func(names []string) []any {
		members := make([]any, 0, len(names))
		for _, name := range names {
			if field, ok := byKey[name]; ok && !placed[name] {
				members = append(members, field)
				placed[name] = true
			}
		}
		return members
	}

	if len(view.Tabs) > 0 {
		tabs := make([]any, 0, len(view.Tabs))
		for _, tab := range view.Tabs {
			tabs = append(tabs, map[string]any{
				"props":      map[string]any{"label": tab.Label},
				"fieldGroup": collect(tab.Fields),
			})
		}
		layout = append(layout, map[string]any{
			"type":       "tabs",
			"fieldGroup": tabs,
		})
	}

	for _, group := range view.Groups {
		container := map[string]any{
			"key":        group.ID,
			"wrappers":   []any{"panel"},
			"props":      map[string]any{"label": group.Label},
			"fieldGroup": collect(group.Fields),
		}
		if group.Collapsed {
			container["props"].(map[string]any)["collapsed"] = true
		}
		layout = append(layout, container)
	}

	for i := range view.Fields {
		name := view.Fields[i].Field
		if !placed[name] {
			layout = append(layout, byKey[name])
			placed[name] = true
		}
	}

	form := map[string]any{
		"fields": layout,
	}
	if view.Title != "" {
		form["title"] = view.Title
	}
	if len(view.Actions) > 0 {
		actions := make([]any, 0, len(view.Actions))
		for _, action := range view.Actions {
			entry := map[string]any{"id": action.ID, "label": action.Label}
			if action.Type != "" {
				entry["type"] = string(action.Type)
			}
			if action.Primary {
				entry["primary"] = true
			}
			if action.Confirm != "" {
				entry["confirm"] = action.Confirm
			}
			actions = append(actions, entry)
		}
		form["actions"] = actions
	}

	conv.Form = form
	return conv
}
