package registry

import "github.com/fast-track-solutions1/msi-teamhub/internal/domain"

func str(name string, required bool) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Type: domain.FieldTypeString, Required: required}
}

func typed(name string, fieldType domain.FieldType, required bool) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Type: fieldType, Required: required}
}

func fk(name, entity, table, lookup string, required bool) domain.FieldSpec {
	return domain.FieldSpec{
		Name:      name,
		Type:      domain.FieldTypeForeignKey,
		Required:  required,
		Reference: &domain.Reference{Entity: entity, Table: table, LookupField: lookup},
	}
}

func choice(name string, required bool, values ...string) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Type: domain.FieldTypeChoice, Required: required, Choices: values}
}

var (
	auditExcluded      = []string{"id", "date_creation"}
	auditModExcluded   = []string{"id", "date_creation", "date_modification"}
	identifierExcluded = []string{"id"}
	equipementTypes    = []string{"casque", "pc", "laptop", "souris", "telephone", "carte_sim", "ecran", "clavier", "docking", "autre"}
	salarieStatuts     = []string{"actif", "inactif", "conge", "arret_maladie"}
	salarieGenres      = []string{"m", "f", "autre"}
	equipementEtats    = []string{"neuf", "bon", "usure", "defaut", "hors_service"}
)

func societeRef(required bool) domain.FieldSpec {
	return fk("societe", "societe", "societes", "nom", required)
}

// DefaultEntries returns the HR entity table shipped with the service.
func DefaultEntries() []domain.EntitySchema {
	return []domain.EntitySchema{
		{
			Key: "societe", DisplayName: "Société", Table: "societes", UniqueField: "nom",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true), str("email", false), str("telephone", false), str("adresse", false),
				str("ville", false), str("code_postal", false), str("activite", false), str("clients", false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "departement", DisplayName: "Département", Table: "departements", UniqueField: "numero",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("numero", true), str("nom", true), str("region", false), str("chef_lieu", false),
				societeRef(true),
				typed("nombre_circuits", domain.FieldTypeInteger, false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "circuit", DisplayName: "Circuit", Table: "circuits",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true),
				fk("departement", "departement", "departements", "numero", true),
				str("description", false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "service", DisplayName: "Service", Table: "services", UniqueField: "nom",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true),
				societeRef(true),
				str("description", false),
				fk("responsable", "salarie", "salaries", "matricule", false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "grade", DisplayName: "Grade", Table: "grades", UniqueField: "nom",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true),
				societeRef(true),
				typed("ordre", domain.FieldTypeInteger, false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "creneau_travail", DisplayName: "Créneau de Travail", Table: "creneaux_travail", UniqueField: "nom",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true),
				societeRef(true),
				typed("heure_debut", domain.FieldTypeTime, true),
				typed("heure_fin", domain.FieldTypeTime, true),
				typed("heure_pause_debut", domain.FieldTypeTime, false),
				typed("heure_pause_fin", domain.FieldTypeTime, false),
				str("description", false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "type_acces", DisplayName: "Type d'Accès", Table: "types_acces", UniqueField: "nom",
			ExcludedFields: identifierExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true), str("description", false), typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "outil_travail", DisplayName: "Outil de Travail", Table: "outils_travail", UniqueField: "nom",
			ExcludedFields: identifierExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true), str("description", false), typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "type_application_acces", DisplayName: "Type d'Application", Table: "types_application_acces", UniqueField: "nom",
			ExcludedFields: identifierExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true), str("description", false), typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "equipement", DisplayName: "Équipement", Table: "equipements",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true),
				choice("type_equipement", true, equipementTypes...),
				str("description", false),
				typed("stock_total", domain.FieldTypeInteger, false),
				typed("stock_disponible", domain.FieldTypeInteger, false),
				typed("actif", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "salarie", DisplayName: "Salarié", Table: "salaries", UniqueField: "matricule",
			ExcludedFields: auditModExcluded,
			Fields: []domain.FieldSpec{
				str("nom", true),
				str("prenom", true),
				str("matricule", true),
				choice("genre", true, salarieGenres...),
				typed("date_naissance", domain.FieldTypeDate, false),
				str("telephone", false),
				str("mail_professionnel", false),
				str("telephone_professionnel", false),
				str("extension_3cx", false),
				societeRef(true),
				fk("service", "service", "services", "nom", false),
				fk("grade", "grade", "grades", "nom", false),
				fk("responsable_direct", "salarie", "salaries", "matricule", false),
				str("poste", false),
				fk("circuit", "circuit", "circuits", "nom", false),
				typed("date_embauche", domain.FieldTypeDate, false),
				choice("statut", false, salarieStatuts...),
				typed("date_sortie", domain.FieldTypeDate, false),
				fk("creneau_travail", "creneau_travail", "creneaux_travail", "nom", false),
				typed("en_poste", domain.FieldTypeBoolean, false),
			},
		},
		{
			Key: "equipement_instance", DisplayName: "Équipement Instance", Table: "equipement_instances", UniqueField: "numero_serie",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				fk("equipement", "equipement", "equipements", "nom", true),
				str("model", false),
				str("numero_serie", false),
				fk("salarie", "salarie", "salaries", "matricule", false),
				typed("date_affectation", domain.FieldTypeDate, true),
				typed("date_retrait", domain.FieldTypeDate, false),
				choice("etat", false, equipementEtats...),
				str("notes", false),
			},
		},
		{
			Key: "horaire_salarie", DisplayName: "Horaire Salarié", Table: "horaires_salarie",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				fk("salarie", "salarie", "salaries", "matricule", true),
				typed("date_debut", domain.FieldTypeDate, true),
				typed("date_fin", domain.FieldTypeDate, false),
				typed("heure_debut", domain.FieldTypeTime, true),
				typed("heure_fin", domain.FieldTypeTime, true),
				typed("heure_pause_debut", domain.FieldTypeTime, false),
				typed("heure_pause_fin", domain.FieldTypeTime, false),
				str("motif", false),
			},
		},
		{
			Key: "acces_application", DisplayName: "Accès Application", Table: "acces_applications",
			ExcludedFields: auditExcluded,
			Fields: []domain.FieldSpec{
				fk("salarie", "salarie", "salaries", "matricule", true),
				fk("type_application", "type_application_acces", "types_application_acces", "nom", true),
				str("application", false),
				str("identifiant", false),
				str("mot_de_passe", false),
				str("url", false),
				typed("date_fin", domain.FieldTypeDate, false),
				str("notes", false),
			},
		},
	}
}

// Default builds the registry from DefaultEntries.
func Default() *Registry {
	return MustNew(DefaultEntries()...)
}
