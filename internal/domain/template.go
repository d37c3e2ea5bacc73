package domain

// Column defaults for stored templates.
const (
	DefaultTemplateSubject   = "{{ subject }}"
	DefaultTemplatePlaintext = "{{ body }}"
	DefaultTemplateHTML      = `<!DOCTYPE html>
<html>
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
</head>
<body>
  <div>{% block content %}{{ body }}{% endblock %}</div>
</body>
</html>
`
)

// Template is a persisted email template written in Liquid. ExtendsID
// points at a parent whose {% block %} regions this template overrides.
type Template struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	ExtendsID             *string `json:"extends,omitempty"`
	Subject               string  `json:"subject"`
	BodyHTML              string  `json:"body_html"`
	AutogeneratePlaintext bool    `json:"autogenerate_plaintext_body"`
	BodyPlaintext         string  `json:"body_plaintext"`
}
