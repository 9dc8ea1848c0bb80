package dbus

// Standard D-Bus names
const (
	DBUS_INTERFACE = "org.freedesktop.DBus"
	DBUS_PATH      = "/org/freedesktop/DBus"

	BUS_LIST_NAMES     = DBUS_INTERFACE + ".ListNames"
	BUS_ADD_MATCH      = DBUS_INTERFACE + ".AddMatch"
	BUS_REMOVE_MATCH   = DBUS_INTERFACE + ".RemoveMatch"
	BUS_GET_NAME_OWNER = DBUS_INTERFACE + ".GetNameOwner"
	DBUS_PROP_IFACE    = DBUS_INTERFACE + ".Properties"

	PROP_GET     = DBUS_PROP_IFACE + ".Get"
	PROP_GET_ALL = DBUS_PROP_IFACE + ".GetAll"

	SIGNAL_NAME_OWNER_CHANGED = DBUS_INTERFACE + ".NameOwnerChanged"
	SIGNAL_PROPERTIES_CHANGED = DBUS_PROP_IFACE + ".PropertiesChanged"
)
