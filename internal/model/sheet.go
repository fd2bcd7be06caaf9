package model

// SheetHeader is the header block shared by the exam sheet and the answer key.
type SheetHeader struct {
	Institution  string   `json:"institution"`
	Tagline      string   `json:"tagline"`
	Faculty      string   `json:"faculty"`
	Department   string   `json:"department"`
	Course       string   `json:"course"`
	Subject      string   `json:"subject"`
	Instructions []string `json:"instructions"`
	// StudentFields adds the name/ID lines students fill in.
	StudentFields bool `json:"student_fields"`
}

// DefaultSheetHeader mirrors the template the department used on paper.
func DefaultSheetHeader() SheetHeader {
	return SheetHeader{
		Institution: "VNIVERSIDAD\nD SALAMANCA",
		Tagline:     "CAMPUS DE EXCELENCIA INTERNACIONAL",
		Faculty:     "FACULTAD DE MEDICINA",
		Department:  "DEPARTAMENTO DE OBSTETRICIA Y GINECOLOGÍA",
		Course:      "3º",
		Subject:     "Ginecología",
		Instructions: []string{
			"Lea atentamente cada cuestión antes de responder.",
			"Dispone de 50 minutos para responder a 40 preguntas tipo test con 4 opciones, de las que sólo una es verdadera.",
			"Cada pregunta correcta suma 1 punto. Las respuestas incorrectas restan 0.25 puntos. Las preguntas no contestadas no suman ni restan puntuación.",
			"Para aprobar el examen será necesario obtener como mínimo una puntuación final de 5 puntos.",
			"La valoración final en las calificaciones será sobre 10 puntos.",
		},
		StudentFields: true,
	}
}
