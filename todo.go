/*
	Project: Academia - police training management (courses, exams, certificates, attendance)
	Target: Police academies & in-service training units
*/
package academia

/*
TODO: admin: upload CSV to bulk create trainees via API ???
TODO: exams: manual review endpoint for short answers (attempt.detail.pending_review) -> rescore & maybe issue certificate
TODO: notifications: websocket gateway subscribing to `notifications.created` on the bus
TODO: certificates: PDF rendering (QR code pointing at /certificates/verify/:serial)

FE: Admin Site | Instructor Dashboard | Trainee Dashboard
	- Admin Site
		* manage users & roles (admin:owner > admin > instructor > trainee)
		* audit log viewer
	- Instructor Dashboard
		* courses, modules, exams authoring
		* attendance capture (manual | qr | biometric)
	- Trainee Dashboard
		* assigned courses, exams, certificates
		* unread notifications badge

------------------------------------ Version X ----------------------------------------
FIXME:Edge-case:
- Trainee transferred to another academy ??? keep certificates, close enrollments ??
- Certificate renewal after expiry: new attempt or refresher course ???

TODO: Calendar (sessions per course & instructor, clashes)

TODO: Biometric devices
	- devices push attendance marks with method=biometric
	- device auth: API keys per device ??
*/
