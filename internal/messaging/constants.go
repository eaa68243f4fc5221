package messaging

// Queue topology shared by both services. Each bounded context owns one main
// queue bound to the topic exchange and one dead-letter queue bound to the
// shared dead-letter exchange.
const (
	AuthQueueName     = "auth-events-queue"
	AuthDLQName       = "auth-events-dlq"
	AuthDLQRoutingKey = "dlq.auth"

	ProfileQueueName     = "profile-events-queue"
	ProfileDLQName       = "profile-events-dlq"
	ProfileDLQRoutingKey = "dlq.profile"
)

// Routing patterns distinguish to-auth from to-profile traffic.
const (
	AuthToProfilePattern = "auth.to.profile.#"
	ProfileToAuthPattern = "profile.to.auth.#"
)

// Routing keys for publishing.
const (
	RegistrationInitiatedKey = "auth.to.profile.registration.initiated"
	RegistrationCompletedKey = "profile.to.auth.registration.completed"
	EducatorCreatedKey       = "profile.to.auth.educator.created"
)

// Event type discriminators, carried both in the payload and in the
// TypeHeader so dispatch never has to parse the body.
const (
	TypeRegistrationInitiated = "REGISTRATION_INITIATED"
	TypeRegistrationCompleted = "REGISTRATION_COMPLETED"
	TypeEducatorCreated       = "EDUCATOR_CREATED"
)

// TypeHeader names the AMQP header holding the event type discriminator.
const TypeHeader = "__TypeId__"
